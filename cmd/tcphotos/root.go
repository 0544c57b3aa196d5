package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tcphotos/pkg/auth"
	"tcphotos/pkg/config"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	outputDir  string
	dryRun     bool
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tcphotos",
	Short: "Download your child's photos from Transparent Classroom",
	Long: `tcphotos signs into Transparent Classroom, walks every page of your
child's observations and saves each attached photo next to a small
.metadata.txt file with the title, author, date and school location.

Photos that are already on disk are never downloaded again, so the
command can be re-run at any time to pick up new posts.

Run 'tcphotos setup' once to store your account and school location.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !ui.IsTerminal() {
			ui.SetNoColor(true)
		}
		if quiet {
			ui.SetQuietMode(true)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return downloadCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		if tcerrors.IsType(err, tcerrors.ErrorTypeConfiguration) {
			fmt.Fprintln(os.Stderr, "\nRun 'tcphotos setup' or 'tcphotos config validate' for details.")
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./tcphotos.yaml or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "directory photos are written to")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "list what would be downloaded without writing anything")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per page and photo instead of a progress bar")

	rootCmd.SetVersionTemplate(`tcphotos {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags for config.MergeCommandLineFlags
func globalFlags() map[string]interface{} {
	flags := map[string]interface{}{}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet && logLevel == "" {
		flags["log-level"] = "error"
	}
	return flags
}

// loadConfig merges every config source and fills missing credentials from
// the credential store. The result is not validated.
func loadConfig(extra map[string]interface{}, account string) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.LoadUnvalidated(configFile, flags)
	if err != nil {
		return nil, err
	}

	if cfg.Portal.Password == "" || account != "" {
		if stored := storedAccount(account); stored != nil {
			if account != "" {
				cfg.Portal.Email = ""
				cfg.Portal.Password = ""
			}
			stored.Apply(cfg)
		}
	}

	return cfg, nil
}

func storedAccount(email string) *auth.Account {
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Debug("Credential store unavailable")
		return nil
	}
	if email != "" {
		account, err := manager.Retrieve(email)
		if err != nil {
			return nil
		}
		return account
	}
	account, err := manager.RetrieveDefault()
	if err != nil {
		return nil
	}
	return account
}

// initLogger configures the global logger from cfg
func initLogger(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to initialize logger: %v", err)
	}
	return logger.GetLogger(), nil
}
