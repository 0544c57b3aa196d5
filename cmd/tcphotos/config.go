package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tcphotos/pkg/auth"
	"tcphotos/pkg/config"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/ui"
)

var configInitForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tcphotos configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TC_EMAIL, TC_PASSWORD, SCHOOL, CHILD, ...)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'tcphotos.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "tcphotos.yaml"
		}
		if err := writeExampleConfig(path, configInitForce); err != nil {
			return err
		}

		ui.PrintSuccess("Configuration file created: " + path)
		out := ui.Output()
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "1. Edit the file and fill in your school ID, child ID and location")
		fmt.Fprintln(out, "2. Store your password with 'tcphotos auth login'")
		fmt.Fprintln(out, "3. Run 'tcphotos config validate' and then 'tcphotos download'")
		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

The password is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, "")
		if err != nil {
			return err
		}
		ui.PrintHighlight("Current Configuration")
		return showConfig(ui.Output(), cfg)
	},
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration.

This command checks:
  - YAML syntax
  - Required fields, including stored credentials
  - Value ranges
  - Whether the output and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, "")
		if err != nil {
			return err
		}
		if source := configSource(); source != "" {
			ui.PrintInfo("Validating configuration", source)
		}

		problems := checkConfig(cfg)
		if len(problems) > 0 {
			ui.PrintError("Configuration has errors:")
			for _, p := range problems {
				fmt.Fprintf(ui.Output(), "  - %s\n", p)
			}
			return tcerrors.Configuration("%d configuration problem(s)", len(problems))
		}

		ui.PrintSuccess("Configuration is valid")
		out := ui.Output()
		fmt.Fprintln(out, "\nConfiguration summary:")
		fmt.Fprintf(out, "  Account: %s\n", cfg.Portal.Email)
		fmt.Fprintf(out, "  School / child: %d / %d\n", cfg.Portal.SchoolID, cfg.Portal.ChildID)
		fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.Directory)
		fmt.Fprintf(out, "  Downloads per minute: %d\n", cfg.HTTP.DownloadsPerMinute)
		fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
		return nil
	},
}

// configPathCmd represents the config path command
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source := configSource()
		if source == "" {
			def, err := config.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "no configuration file found (setup writes %s)\n", def)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
}

// configSource returns the file the configuration is read from, if any
func configSource() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}

// showConfig writes cfg as YAML with the password masked
func showConfig(w io.Writer, cfg *config.Config) error {
	display := *cfg
	if display.Portal.Password != "" {
		display.Portal.Password = auth.SanitizeAccount(&auth.Account{Password: display.Portal.Password}).Password
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// checkConfig returns every problem with cfg, including unusable paths
func checkConfig(cfg *config.Config) []string {
	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = append(problems, splitLines(err.Error())...)
	}

	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.HTTP.CookieFile != "" {
		if _, err := os.Stat(cfg.HTTP.CookieFile); err != nil {
			problems = append(problems, fmt.Sprintf("cookie file is not readable: %v", err))
		}
	}
	return problems
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func writeExampleConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return tcerrors.Configuration("configuration file already exists: %s (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return tcerrors.IO(err, "failed to create config directory: %v", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return tcerrors.IO(err, "failed to create configuration file: %v", err)
	}
	return nil
}

const exampleConfig = `# tcphotos configuration file
#
# Every value can also be set through the environment:
# TC_EMAIL, TC_PASSWORD, SCHOOL, CHILD, SCHOOL_LAT, SCHOOL_LNG,
# SCHOOL_KEYWORDS, TC_OUTPUT_DIR, TC_BASE_URL, TC_CACHE_DIR, TC_LOG_LEVEL

portal:
  # Email used to sign into Transparent Classroom
  email: ""

  # Leave empty and run 'tcphotos auth login' to keep the password
  # in the system keychain instead
  password: ""

  # Both IDs appear in the portal URL:
  # https://www.transparentclassroom.com/schools/<school_id>/children/<child_id>
  school_id: 0
  child_id: 0

  # Override the portal address (optional)
  # base_url: "https://www.transparentclassroom.com/schools/<school_id>"

# Written into every photo's metadata file
school:
  latitude: 0
  longitude: 0
  keywords: ""

output:
  directory: "./photos"

http:
  timeout: 30s

  # Retry through the Cloudflare-aware transport
  cloudflare_bypass: true

  # Netscape cookie file exported from a signed-in browser (optional)
  # cookie_file: "cookies.txt"

  # Attempts per photo, including the first
  download_attempts: 3

  # Upper bound on photo fetches; 0 disables the cap
  downloads_per_minute: 60

# Cache listing pages on disk between runs
cache:
  enabled: false
  max_age: 1h

# Record every download in a local SQLite database ('tcphotos history')
history:
  enabled: true

logging:
  # debug, info, warn, error, disabled
  level: "info"

  # console or json
  format: "console"

  # Also write logs to this file (optional)
  file: ""
`
