package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-kb/internal/config"
	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/identity"
	"github.com/tonimelisma/onedrive-kb/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your Microsoft account",
		Long: `Sign in to your Microsoft account. The browser flow opens the system
browser; --device prints a code to enter on another device instead.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().Bool("device", false, "use the device code flow")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved sign-in of an account",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	cfg := *resolvedCfg

	if device, _ := cmd.Flags().GetBool("device"); device {
		cfg.InteractiveFlow = config.FlowDevice
	}

	a := newApp(&cfg, logger)
	defer a.Close()

	logger.Info("login started", slog.String("flow", cfg.InteractiveFlow))

	account, _, err := a.idp.Login(ctx, cfg.FilesScopes)
	if err != nil {
		return err
	}

	statusf("Signed in as %s.\n", account.Username)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	accounts, err := a.idp.Accounts(context.Background())
	if err != nil {
		return err
	}

	account, err := selectAccount(accounts, resolvedCfg.Account)
	if err != nil {
		return err
	}

	if err := a.idp.Logout(account); err != nil {
		return err
	}

	statusf("Signed out %s.\n", account.Username)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	User     whoamiUser      `json:"user"`
	Accounts []whoamiAccount `json:"accounts"`
}

type whoamiUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type whoamiAccount struct {
	Username  string `json:"username"`
	TokenPath string `json:"token_path"`
	Active    bool   `json:"active"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	accounts, err := a.idp.Accounts(ctx)
	if err != nil {
		return err
	}

	active, err := selectAccount(accounts, resolvedCfg.Account)
	if err != nil {
		return err
	}

	user, err := a.graphClient().Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching user profile: %w", err)
	}

	// The email doubles as the default requester identity for submissions.
	if user.Email != "" {
		if mergeErr := tokenfile.LoadAndMergeMeta(active.TokenPath, map[string]string{
			tokenfile.MetaEmail: user.Email,
		}); mergeErr != nil {
			logger.Warn("caching profile email", slog.String("error", mergeErr.Error()))
		}
	}

	if flagJSON {
		return writeJSON(os.Stdout, newWhoamiOutput(user, accounts, active))
	}

	printWhoamiText(os.Stdout, user, accounts, active)

	return nil
}

func newWhoamiOutput(user *graph.User, accounts []identity.Account, active identity.Account) whoamiOutput {
	out := whoamiOutput{
		User: whoamiUser{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		},
		Accounts: make([]whoamiAccount, 0, len(accounts)),
	}

	for _, acc := range accounts {
		out.Accounts = append(out.Accounts, whoamiAccount{
			Username:  acc.Username,
			TokenPath: acc.TokenPath,
			Active:    acc.Username == active.Username,
		})
	}

	return out
}

func printWhoamiText(w io.Writer, user *graph.User, accounts []identity.Account, active identity.Account) {
	fmt.Fprintf(w, "User:  %s (%s)\n", user.DisplayName, user.Email)
	fmt.Fprintf(w, "ID:    %s\n", user.ID)

	if len(accounts) < 2 {
		return
	}

	fmt.Fprintln(w, "\nSigned-in accounts:")

	for _, acc := range accounts {
		marker := " "
		if acc.Username == active.Username {
			marker = "*"
		}

		fmt.Fprintf(w, "  %s %s\n", marker, acc.Username)
	}
}
