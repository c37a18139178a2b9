package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/browser"

	"github.com/tonimelisma/onedrive-kb/internal/authbroker"
	"github.com/tonimelisma/onedrive-kb/internal/config"
	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/history"
	"github.com/tonimelisma/onedrive-kb/internal/identity"
	"github.com/tonimelisma/onedrive-kb/internal/ingest"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
)

// Scope set names. The broker caches one token per set.
const (
	scopeSetFiles = "files"
	scopeSetAPI   = "api"
)

// app bundles the collaborators a command needs, built from resolvedCfg.
type app struct {
	cfg        *config.Resolved
	logger     *slog.Logger
	idp        *identity.Provider
	broker     *authbroker.Broker
	httpClient *http.Client

	history *history.Store
}

func newApp(cfg *config.Resolved, logger *slog.Logger) *app {
	idp := identity.NewProvider(identity.Config{
		ClientID: cfg.ClientID,
		Tenant:   cfg.Tenant,
		TokenDir: cfg.TokenDir,
		Flow:     identity.Flow(cfg.InteractiveFlow),
		OpenURL:  openBrowser,
	}, logger)

	broker := authbroker.NewBroker(idp, authbroker.Config{
		Account:        cfg.Account,
		AcquireTimeout: cfg.AcquireTimeout,
	}, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		idp:        idp,
		broker:     broker,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// openBrowser launches the system browser without letting the launcher's
// own output reach the terminal.
func openBrowser(u string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return browser.OpenURL(u)
}

func (a *app) filesScopes() authbroker.ScopeSet {
	return authbroker.ScopeSet{Name: scopeSetFiles, Scopes: a.cfg.FilesScopes}
}

func (a *app) apiScopes() authbroker.ScopeSet {
	return authbroker.ScopeSet{Name: scopeSetAPI, Scopes: a.cfg.APIScopes}
}

// graphClient returns a directory client authorized with the files scope set.
func (a *app) graphClient() *graph.Client {
	return graph.NewClient(a.cfg.GraphBaseURL, a.httpClient, a.broker.Source(a.filesScopes()), a.logger, a.cfg.UserAgent)
}

// backendClient returns a knowledge-base client authorized with the API
// scope set. It fails when no API scope is configured.
func (a *app) backendClient() (*kbapi.Client, error) {
	if err := a.cfg.RequireBackend(); err != nil {
		return nil, err
	}

	return kbapi.NewClient(a.cfg.BackendURL, a.httpClient, a.broker.Source(a.apiScopes()), a.logger, a.cfg.UserAgent), nil
}

// recorder opens the history database on first use. It returns a nil
// Recorder when history is disabled.
func (a *app) recorder(ctx context.Context) (ingest.Recorder, error) {
	if !a.cfg.HistoryEnabled {
		return nil, nil
	}

	if a.history == nil {
		st, err := history.Open(ctx, a.cfg.HistoryDBPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("opening submission history: %w", err)
		}

		a.history = st
	}

	return a.history, nil
}

// accountName is the username recorded with submissions: the account the
// broker will use, or the configured selector when none can be listed.
func (a *app) accountName(ctx context.Context) string {
	accounts, err := a.idp.Accounts(ctx)
	if err != nil {
		return a.cfg.Account
	}

	acc, err := selectAccount(accounts, a.cfg.Account)
	if err != nil {
		return a.cfg.Account
	}

	return acc.Username
}

func (a *app) Close() {
	if a.history == nil {
		return
	}

	if err := a.history.Close(); err != nil {
		a.logger.Warn("closing history database", slog.String("error", err.Error()))
	}
}

// selectAccount picks the account named by want, or the first signed-in
// account when want is empty. The broker applies the same rule.
func selectAccount(accounts []identity.Account, want string) (identity.Account, error) {
	if len(accounts) == 0 {
		return identity.Account{}, authbroker.ErrNoAccount
	}

	if want == "" {
		return accounts[0], nil
	}

	for _, acc := range accounts {
		if strings.EqualFold(acc.Username, want) {
			return acc, nil
		}
	}

	return identity.Account{}, fmt.Errorf("%w: %s", identity.ErrUnknownAccount, want)
}
