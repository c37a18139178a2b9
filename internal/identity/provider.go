// Package identity is the OAuth2 identity layer for Microsoft accounts. It
// keeps one token file per signed-in account, redeems the saved refresh token
// for whatever scopes a caller asks for, and runs the browser (authorization
// code + PKCE) or device code flow when the user has to sign in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/tonimelisma/onedrive-kb/internal/tokenfile"
)

// DefaultClientID is the public client registration of the onedrive-go
// CLI, reused so that sign-in and browsing work without setup. It is not
// registered for this tool; deployments set auth.client_id to their own
// app registration, which is also where the backend's API scopes are
// granted.
const DefaultClientID = "8efac532-bbe7-4bc5-919c-1443ccab860a"

// DefaultTenant accepts both work/school and personal accounts.
const DefaultTenant = "common"

// Scopes always requested during interactive sign-in so the result carries a
// refresh token and an id_token naming the account.
var signInScopes = []string{"offline_access", "openid", "profile"}

// ErrInteractionRequired means no silent path exists: the account has no
// refresh token, or the authority rejected it and the user must sign in.
var ErrInteractionRequired = errors.New("identity: user interaction required")

// ErrUnknownAccount is returned by Logout for an account with no token file.
var ErrUnknownAccount = errors.New("identity: unknown account")

// OAuth error codes that can only be cleared by signing in again.
var interactionCodes = []string{
	"invalid_grant",
	"interaction_required",
	"consent_required",
	"login_required",
}

// Flow selects the interactive sign-in flow.
type Flow string

// Interactive flows.
const (
	FlowBrowser Flow = "browser"
	FlowDevice  Flow = "device"
)

// Account is a signed-in user with a saved token file.
type Account struct {
	ID          string
	Username    string
	DisplayName string
	TokenPath   string
}

// Token is an access token for one set of scopes.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// DeviceAuth holds the device code fields shown to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Config configures a Provider.
type Config struct {
	ClientID string
	Tenant   string
	// TokenDir holds one token file per account.
	TokenDir string
	Flow     Flow
	// OpenURL launches a browser for the browser flow.
	OpenURL func(string) error
	// ShowDeviceCode displays the device code for the device flow.
	ShowDeviceCode func(DeviceAuth)
	// Endpoint overrides the Microsoft endpoint for the tenant.
	Endpoint *oauth2.Endpoint
}

// Provider implements silent and interactive token acquisition over saved
// token files.
type Provider struct {
	cfg    Config
	logger *slog.Logger
}

// NewProvider returns a Provider, filling defaults for empty fields.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}

	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}

	if cfg.Flow == "" {
		cfg.Flow = FlowBrowser
	}

	if cfg.ShowDeviceCode == nil {
		cfg.ShowDeviceCode = func(da DeviceAuth) {
			fmt.Fprintf(os.Stderr, "To sign in, visit %s and enter the code %s\n", da.VerificationURI, da.UserCode)
		}
	}

	return &Provider{cfg: cfg, logger: logger}
}

func (p *Provider) oauthConfig(scopes []string) *oauth2.Config {
	endpoint := microsoft.AzureADEndpoint(p.cfg.Tenant)
	if p.cfg.Endpoint != nil {
		endpoint = *p.cfg.Endpoint
	}

	return &oauth2.Config{
		ClientID: p.cfg.ClientID,
		Scopes:   scopes,
		Endpoint: endpoint,
	}
}

// Accounts lists accounts with a token file, sorted by username.
func (p *Provider) Accounts(_ context.Context) ([]Account, error) {
	entries, err := tokenfile.List(p.cfg.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("identity: listing accounts: %w", err)
	}

	accounts := make([]Account, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, Account{
			ID:          e.Meta[tokenfile.MetaAccountID],
			Username:    e.Username(),
			DisplayName: e.Meta[tokenfile.MetaDisplayName],
			TokenPath:   e.Path,
		})
	}

	slices.SortFunc(accounts, func(a, b Account) int {
		return strings.Compare(a.Username, b.Username)
	})

	return accounts, nil
}

// AcquireSilent redeems the account's refresh token for scopes. Errors that
// only a new sign-in can fix wrap ErrInteractionRequired.
func (p *Provider) AcquireSilent(ctx context.Context, scopes []string, account Account) (Token, error) {
	saved, meta, err := tokenfile.Load(account.TokenPath)
	if err != nil {
		return Token{}, fmt.Errorf("identity: loading token for %s: %w", account.Username, err)
	}

	if saved == nil || saved.RefreshToken == "" {
		return Token{}, fmt.Errorf("%w: no refresh token for %s", ErrInteractionRequired, account.Username)
	}

	// Exchange lets the grant type and scope be overridden; the token
	// refresher in oauth2 never sends a scope, which would pin every
	// redemption to the scopes of the original sign-in.
	tok, err := p.oauthConfig(scopes).Exchange(ctx, "",
		oauth2.SetAuthURLParam("grant_type", "refresh_token"),
		oauth2.SetAuthURLParam("refresh_token", saved.RefreshToken),
		oauth2.SetAuthURLParam("scope", strings.Join(scopes, " ")),
	)
	if err != nil {
		if needsInteraction(err) {
			return Token{}, fmt.Errorf("%w: %w", ErrInteractionRequired, err)
		}

		return Token{}, fmt.Errorf("identity: redeeming refresh token for %s: %w", account.Username, err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != saved.RefreshToken {
		if saveErr := tokenfile.Save(account.TokenPath, tok, meta); saveErr != nil {
			p.logger.Warn("failed to persist rotated refresh token",
				slog.String("path", account.TokenPath),
				slog.String("error", saveErr.Error()),
			)
		}
	}

	p.logger.Debug("silent token redeemed",
		slog.String("account", account.Username),
		slog.Time("expiry", tok.Expiry),
	)

	return Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}

func needsInteraction(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}

	return slices.Contains(interactionCodes, re.ErrorCode)
}

// InteractionRequired reports whether err came from a silent acquisition that
// only interactive sign-in can recover.
func (p *Provider) InteractionRequired(err error) bool {
	return errors.Is(err, ErrInteractionRequired)
}

// AcquireInteractive signs the user in and returns a token for scopes.
func (p *Provider) AcquireInteractive(ctx context.Context, scopes []string) (Token, error) {
	_, tok, err := p.Login(ctx, scopes)
	if err != nil {
		return Token{}, err
	}

	return tok, nil
}

// Login runs the configured interactive flow and saves the account's token
// file. It returns the account and a token for scopes.
func (p *Provider) Login(ctx context.Context, scopes []string) (Account, Token, error) {
	cfg := p.oauthConfig(withSignInScopes(scopes))

	var (
		tok *oauth2.Token
		err error
	)

	switch p.cfg.Flow {
	case FlowDevice:
		tok, err = deviceLogin(ctx, cfg, p.cfg.ShowDeviceCode, p.logger)
	default:
		tok, err = browserLogin(ctx, cfg, p.openURL, p.logger)
	}

	if err != nil {
		return Account{}, Token{}, err
	}

	claims := claimsFromToken(tok, p.logger)
	account := Account{
		ID:          claims.ObjectID,
		Username:    claims.username(),
		DisplayName: claims.Name,
	}
	account.TokenPath = tokenfile.PathFor(p.cfg.TokenDir, account.Username)

	meta := map[string]string{
		tokenfile.MetaUsername:    account.Username,
		tokenfile.MetaDisplayName: account.DisplayName,
		tokenfile.MetaAccountID:   account.ID,
	}

	if saveErr := tokenfile.Save(account.TokenPath, tok, meta); saveErr != nil {
		return Account{}, Token{}, fmt.Errorf("identity: saving token: %w", saveErr)
	}

	p.logger.Info("login successful",
		slog.String("account", account.Username),
		slog.String("path", account.TokenPath),
	)

	return account, Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}

func (p *Provider) openURL(u string) error {
	if p.cfg.OpenURL == nil {
		return errors.New("no browser launcher configured")
	}

	return p.cfg.OpenURL(u)
}

func withSignInScopes(scopes []string) []string {
	out := slices.Clone(scopes)
	for _, s := range signInScopes {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}

	return out
}

// Logout removes the account's token file.
func (p *Provider) Logout(account Account) error {
	path := account.TokenPath
	if path == "" {
		path = tokenfile.PathFor(p.cfg.TokenDir, account.Username)
	}

	removed, err := tokenfile.Remove(path)
	if err != nil {
		return fmt.Errorf("identity: removing token for %s: %w", account.Username, err)
	}

	if !removed {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account.Username)
	}

	p.logger.Info("logout: removed token file", slog.String("path", path))

	return nil
}

// TokenDir is the directory holding account token files.
func (p *Provider) TokenDir() string {
	return filepath.Clean(p.cfg.TokenDir)
}
