package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tcphotos/pkg/auth"
	"tcphotos/pkg/classroom"
	"tcphotos/pkg/config"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/ui"
)

var (
	loginSkipVerify bool
	logoutAll       bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Transparent Classroom accounts",
	Long: `Manage stored Transparent Classroom credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
}

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store an account securely",
	Long: `Store a Transparent Classroom account in the system keychain or an
encrypted file.

You will be prompted for:
  - the email you sign in with (if not provided)
  - your password (hidden as you type)
  - the school ID and child ID from the portal URL

The account is checked against the portal before it is stored unless
--skip-verify is given.`,
	Example: `  # Interactive login
  tcphotos auth login

  # Login with email
  tcphotos auth login parent@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to initialize credential manager: %v", err)
		}
		cfg, err := config.LoadUnvalidated(configFile, globalFlags())
		if err != nil {
			return err
		}
		log, err := initLogger(cfg)
		if err != nil {
			return err
		}

		email := cfg.Portal.Email
		if len(args) > 0 {
			email = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		return runAuthLogin(ctx, p, manager, cfg, email, !loginSkipVerify, log)
	},
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove stored credentials",
	Long: `Remove a stored account.

Without an email the only stored account is removed after confirmation.
Use --all to remove every stored account.`,
	Example: `  # Remove a specific account
  tcphotos auth logout parent@example.com

  # Remove everything
  tcphotos auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to initialize credential manager: %v", err)
		}
		email := ""
		if len(args) > 0 {
			email = args[0]
		}
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		return runAuthLogout(p, manager, email, logoutAll)
	},
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with the password masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to initialize credential manager: %v", err)
		}
		return runAuthList(ui.Output(), manager)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)

	authLoginCmd.Flags().BoolVar(&loginSkipVerify, "skip-verify", false, "store the account without signing in first")
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runAuthLogin(ctx context.Context, p *prompter, manager *auth.Manager, cfg *config.Config, email string, verify bool, log logger.Logger) error {
	var err error
	if email == "" {
		if email, err = p.askRequired("Email", ""); err != nil {
			return err
		}
	}

	if existing, _ := manager.Retrieve(email); existing != nil {
		ok, err := p.confirm(fmt.Sprintf("Account %s already exists. Update it?", email), false)
		if err != nil || !ok {
			return err
		}
		existing.Apply(cfg)
	}

	account := &auth.Account{Email: email}
	if account.Password, err = p.askSecret("Password", ""); err != nil {
		return err
	}
	if account.SchoolID, err = p.askUint("School ID", cfg.Portal.SchoolID); err != nil {
		return err
	}
	if account.ChildID, err = p.askUint("Child ID", cfg.Portal.ChildID); err != nil {
		return err
	}

	if verify {
		cfg.Portal.Email = account.Email
		cfg.Portal.Password = account.Password
		cfg.Portal.SchoolID = account.SchoolID
		cfg.Portal.ChildID = account.ChildID

		client, err := classroom.NewClient(classroom.OptionsFromConfig(cfg, log))
		if err != nil {
			return err
		}
		state, err := client.Login(ctx)
		if err != nil {
			auth.ShowCookieGuide(p.out)
			return err
		}
		fmt.Fprintf(p.out, "Signed in (%s).\n", state)
	}

	if err := manager.Store(account); err != nil {
		return tcerrors.Wrap(tcerrors.ErrorTypeIO, err, "failed to store credentials: %v", err)
	}
	ui.PrintSuccess("Account saved: " + account.Email)
	return nil
}

func runAuthLogout(p *prompter, manager *auth.Manager, email string, all bool) error {
	if all {
		ok, err := p.confirm("Remove ALL stored accounts?", false)
		if err != nil || !ok {
			return err
		}
		if err := manager.DeleteAll(); err != nil {
			return tcerrors.Wrap(tcerrors.ErrorTypeIO, err, "failed to remove accounts: %v", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	if email == "" {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			return tcerrors.New(tcerrors.ErrorTypeNotFound, "no stored accounts found")
		}
		if len(accounts) > 1 {
			return tcerrors.Configuration("%d accounts are stored; name the one to remove or pass --all", len(accounts))
		}
		email = accounts[0].Email
		ok, err := p.confirm(fmt.Sprintf("Remove account %s?", email), false)
		if err != nil || !ok {
			return err
		}
	}

	if err := manager.Delete(email); err != nil {
		return tcerrors.Wrap(tcerrors.ErrorTypeNotFound, err, "failed to remove account %s: %v", email, err)
	}
	ui.PrintSuccess("Account removed: " + email)
	return nil
}

func runAuthList(w io.Writer, manager *auth.Manager) error {
	accounts, err := manager.List()
	if err != nil {
		return tcerrors.Wrap(tcerrors.ErrorTypeIO, err, "failed to list accounts: %v", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'tcphotos auth login' to add one")
		return nil
	}

	rows := make([]ui.AccountRow, 0, len(accounts))
	for _, a := range accounts {
		s := auth.SanitizeAccount(a)
		rows = append(rows, ui.AccountRow{
			Email:    s.Email,
			Password: s.Password,
			SchoolID: s.SchoolID,
			ChildID:  s.ChildID,
			Modified: s.LastModified,
		})
	}
	ui.RenderAccounts(w, rows)
	return nil
}
