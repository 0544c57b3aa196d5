// Package checkpoint keeps a history of downloaded photos.
//
// Each successful download is recorded in a SQLite database so that later
// runs can report what was fetched and when. The files on disk remain the
// source of truth for skipping work; the ledger is informational.
//
// The database lives in the platform data directory:
//   - Linux: $XDG_DATA_HOME/tcphotos/history.db or ~/.local/share/tcphotos/history.db
//   - macOS: ~/Library/Application Support/tcphotos/history.db
//   - Windows: %APPDATA%/tcphotos/history.db
package checkpoint
