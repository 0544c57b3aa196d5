// Package logger provides the structured logging interface used across tcphotos.
//
// It wraps zerolog and supports:
// - Leveled logging (Debug, Info, Warn, Error, Fatal)
// - Structured fields via WithField/WithFields and the *WithFields methods
// - Colored console output or raw JSON lines (logging.format)
// - Tee to a JSON log file (logging.file)
// - A global logger plus injectable instances
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.Info("Starting download")
//	logger.WithField("post_id", "42").Warn("Post has no photos")
//
// Components take a Logger and fall back to GetLogger when it is nil:
//
//	log := logger.OrDefault(opts.Logger).WithField("component", "crawler")
//
// Tests use NewNopLogger or NewTestLogger, whose HasMessage and
// GetMessagesByLevel helpers inspect what was logged.
package logger
