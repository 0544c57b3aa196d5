package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tcphotos/pkg/auth"
	"tcphotos/pkg/classroom"
	"tcphotos/pkg/config"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/location"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/ui"
)

var setupForce bool

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store your account and school location",
	Long: `Walk through first-time configuration.

You will be asked for:
  - the email and password you use on Transparent Classroom
  - your school ID and child ID (both are in the portal URL)
  - the school location written into every photo's metadata

The credentials are checked against the portal before anything is saved.
The password goes to the system keychain or an encrypted file; the rest
is written to the configuration file.`,
	Example: `  # Interactive setup
  tcphotos setup

  # Write the configuration somewhere else
  tcphotos setup --config ./tcphotos.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "%v", err)
			}
			path = p
		}

		cfg, err := config.LoadUnvalidated(configFile, globalFlags())
		if err != nil {
			return err
		}
		log, err := initLogger(cfg)
		if err != nil {
			return err
		}

		manager, err := auth.NewManager()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ui.PrintBanner()
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		return runSetup(ctx, p, cfg, path, setupForce, manager, log)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().BoolVarP(&setupForce, "force", "f", false, "overwrite an existing configuration file without asking")
}

// accountSaver keeps the credentials out of the configuration file
type accountSaver interface {
	Store(account *auth.Account) error
}

// runSetup prompts for every setting, checks the sign-in and writes the
// configuration to path
func runSetup(ctx context.Context, p *prompter, cfg *config.Config, path string, force bool, saver accountSaver, log logger.Logger) error {
	if _, err := os.Stat(path); err == nil && !force {
		ok, err := p.confirm(fmt.Sprintf("%s already exists. Overwrite it?", path), false)
		if err != nil {
			return err
		}
		if !ok {
			return tcerrors.New(tcerrors.ErrorTypeConfiguration, "setup cancelled")
		}
	}

	auth.ShowSetupGuide(p.out)

	var err error
	if cfg.Portal.Email, err = p.askRequired("Email", cfg.Portal.Email); err != nil {
		return err
	}
	if cfg.Portal.Password, err = p.askSecret("Password", cfg.Portal.Password); err != nil {
		return err
	}
	if cfg.Portal.SchoolID, err = p.askUint("School ID", cfg.Portal.SchoolID); err != nil {
		return err
	}
	if cfg.Portal.ChildID, err = p.askUint("Child ID", cfg.Portal.ChildID); err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "%v", err)
	}

	fmt.Fprintln(p.out, "\nChecking your credentials...")
	client, err := classroom.NewClient(classroom.OptionsFromConfig(cfg, log))
	if err != nil {
		return err
	}
	state, err := client.Login(ctx)
	if err != nil {
		auth.ShowCookieGuide(p.out)
		return err
	}
	fmt.Fprintf(p.out, "Signed in (%s).\n\n", state)

	if err := askLocation(ctx, p, client, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "configuration validation failed: %v", err)
	}

	account := &auth.Account{
		Email:    cfg.Portal.Email,
		Password: cfg.Portal.Password,
		SchoolID: cfg.Portal.SchoolID,
		ChildID:  cfg.Portal.ChildID,
	}
	toSave := *cfg
	if err := saver.Store(account); err != nil {
		log.WithError(err).Warn("Could not store credentials securely, keeping the password in the config file")
	} else {
		toSave.Portal.Password = ""
	}

	if err := toSave.Save(path); err != nil {
		return tcerrors.IO(err, "%v", err)
	}

	fmt.Fprintln(p.out)
	ui.PrintSuccess("Setup complete")
	ui.PrintInfo("Configuration", path)
	ui.PrintInfo("Next", "tcphotos download")
	return nil
}

// askLocation fills cfg.School, offering the coordinates found on the portal
func askLocation(ctx context.Context, p *prompter, client *classroom.Client, cfg *config.Config) error {
	found, err := location.Discover(ctx, client, cfg.Portal.SchoolID, cfg.Portal.Email, cfg.Portal.Password)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	useFound := false
	if err == nil {
		useFound, err = p.confirm(fmt.Sprintf("Found school location %s. Use it?", found), true)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(p.out, "Could not find the school location on the portal. Enter it manually.")
	}

	if useFound {
		cfg.School.Latitude = found.Latitude
		cfg.School.Longitude = found.Longitude
	} else {
		if cfg.School.Latitude, err = p.askFloat("Latitude", cfg.School.Latitude, -90, 90); err != nil {
			return err
		}
		if cfg.School.Longitude, err = p.askFloat("Longitude", cfg.School.Longitude, -180, 180); err != nil {
			return err
		}
	}

	keywords, err := p.askRequired("Location keywords (e.g. school name, city)", cfg.School.Keywords)
	if err != nil {
		return err
	}
	cfg.School.Keywords = strings.TrimSpace(keywords)
	return nil
}
