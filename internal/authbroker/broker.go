// Package authbroker hands out access tokens per scope set. It reuses cached
// tokens, falls back from silent to interactive acquisition only when the
// identity provider says interaction is required, and collapses concurrent
// requests for the same scope set into a single acquisition.
package authbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/onedrive-kb/internal/identity"
)

// Defaults applied by NewBroker for zero Config fields.
const (
	DefaultAcquireTimeout = 5 * time.Minute
	DefaultExpirySkew     = time.Minute
)

// IdentityProvider is the capability surface the broker needs from an
// identity SDK. identity.Provider is the production implementation.
type IdentityProvider interface {
	Accounts(ctx context.Context) ([]identity.Account, error)
	AcquireSilent(ctx context.Context, scopes []string, account identity.Account) (identity.Token, error)
	AcquireInteractive(ctx context.Context, scopes []string) (identity.Token, error)
	// InteractionRequired classifies a silent-acquisition error.
	InteractionRequired(err error) bool
}

// ScopeSet is a named group of scopes requested together. The name keys the
// cache, so two sets with different names never share a token.
type ScopeSet struct {
	Name   string
	Scopes []string
}

func (s ScopeSet) key() string {
	sorted := slices.Clone(s.Scopes)
	slices.Sort(sorted)

	return s.Name + "|" + strings.Join(sorted, " ")
}

// Config tunes a Broker.
type Config struct {
	// Account picks the account by username; empty selects the first one.
	Account string
	// AcquireTimeout bounds one silent+interactive acquisition.
	AcquireTimeout time.Duration
	// ExpirySkew treats tokens expiring within this window as expired.
	ExpirySkew time.Duration
}

// record is the per-scope-set cache entry.
type record struct {
	token  string
	expiry time.Time
	state  State
	err    error
}

// Broker is safe for concurrent use.
type Broker struct {
	idp     IdentityProvider
	cfg     Config
	logger  *slog.Logger
	nowFunc func() time.Time

	flights singleflight.Group
	// signInSlot admits one interactive acquisition at a time.
	signInSlot chan struct{}

	mu         sync.Mutex
	records    map[string]*record
	generation uint64
	signIns    uint64 // completed interactive acquisitions
}

// NewBroker creates a broker over idp.
func NewBroker(idp IdentityProvider, cfg Config, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}

	if cfg.ExpirySkew <= 0 {
		cfg.ExpirySkew = DefaultExpirySkew
	}

	return &Broker{
		idp:        idp,
		cfg:        cfg,
		logger:     logger,
		nowFunc:    time.Now,
		signInSlot: make(chan struct{}, 1),
		records:    make(map[string]*record),
	}
}

// Token returns an access token for set. A valid cached token is returned
// without contacting the provider. Otherwise one acquisition runs per scope
// set no matter how many callers are waiting; each caller stops waiting when
// its own ctx ends, without canceling the shared acquisition.
func (b *Broker) Token(ctx context.Context, set ScopeSet) (string, error) {
	key := set.key()

	if tok, ok := b.cached(key); ok {
		return tok, nil
	}

	// Flights are keyed per generation so a request made after Reset never
	// joins an acquisition that Reset already orphaned.
	gen := b.generationNow()
	ch := b.flights.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		return b.acquire(context.WithoutCancel(ctx), set, key, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		tok, _ := res.Val.(string)

		return tok, nil
	case <-ctx.Done():
		return "", fmt.Errorf("authbroker: waiting for %s token: %w", set.Name, ctx.Err())
	}
}

// cached returns a non-expired token for key.
func (b *Broker) cached(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[key]
	if !ok || rec.state != StateCached || !b.validLocked(rec) {
		return "", false
	}

	return rec.token, true
}

func (b *Broker) validLocked(rec *record) bool {
	if rec.token == "" {
		return false
	}

	if rec.expiry.IsZero() {
		return true
	}

	return b.nowFunc().Add(b.cfg.ExpirySkew).Before(rec.expiry)
}

// acquire runs the silent → interactive escalation for one scope set on
// behalf of session generation gen.
func (b *Broker) acquire(ctx context.Context, set ScopeSet, key string, gen uint64) (string, error) {
	// A flight that finished just before this one started may have filled
	// the cache already.
	if tok, ok := b.cached(key); ok {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.AcquireTimeout)
	defer cancel()

	b.setState(key, gen, StateSilent, nil)
	signIns := b.signInCount()

	account, err := b.pickAccount(ctx)
	if err != nil {
		authErr := &AuthError{Kind: KindNoAccount, Scope: set.Name, Err: err}
		b.setState(key, gen, StateFailed, authErr)

		return "", authErr
	}

	b.logger.Debug("acquiring token silently",
		slog.String("scope_set", set.Name),
		slog.String("account", account.Username),
	)

	tok, err := b.idp.AcquireSilent(ctx, set.Scopes, account)
	if err == nil {
		tok, err = nonEmpty(tok)
	}

	if err != nil {
		if !b.idp.InteractionRequired(err) {
			authErr := &AuthError{Kind: KindSilentFailed, Scope: set.Name, Err: err}
			b.setState(key, gen, StateFailed, authErr)

			b.logger.Warn("silent token acquisition failed",
				slog.String("scope_set", set.Name),
				slog.String("error", err.Error()),
			)

			return "", authErr
		}

		b.setState(key, gen, StateInteractionRequired, nil)
		b.logger.Info("interaction required, starting interactive acquisition",
			slog.String("scope_set", set.Name),
		)

		b.setState(key, gen, StateInteractive, nil)

		tok, err = b.signIn(ctx, set, account, signIns)
		if err == nil {
			tok, err = nonEmpty(tok)
		}

		if err != nil {
			authErr := &AuthError{Kind: KindInteractionFailed, Scope: set.Name, Err: err}
			b.setState(key, gen, StateFailed, authErr)

			b.logger.Warn("interactive token acquisition failed",
				slog.String("scope_set", set.Name),
				slog.String("error", err.Error()),
			)

			return "", authErr
		}
	}

	if !b.store(key, gen, tok) {
		b.logger.Info("discarding token acquired before session reset",
			slog.String("scope_set", set.Name),
		)

		return "", ErrSessionReset
	}

	b.logger.Info("token acquired",
		slog.String("scope_set", set.Name),
		slog.Time("expiry", tok.Expiry),
	)

	return tok.AccessToken, nil
}

// signIn runs one interactive acquisition at a time. When another sign-in
// completed since this acquisition started, a silent attempt is made first:
// the fresh refresh token usually covers this scope set as well.
func (b *Broker) signIn(ctx context.Context, set ScopeSet, account identity.Account, seen uint64) (identity.Token, error) {
	select {
	case b.signInSlot <- struct{}{}:
	case <-ctx.Done():
		return identity.Token{}, fmt.Errorf("waiting for another sign-in: %w", ctx.Err())
	}
	defer func() { <-b.signInSlot }()

	if b.signInCount() != seen {
		tok, err := b.idp.AcquireSilent(ctx, set.Scopes, account)
		if err == nil && tok.AccessToken != "" {
			b.logger.Debug("reused sign-in from another scope set", slog.String("scope_set", set.Name))
			return tok, nil
		}
	}

	tok, err := b.idp.AcquireInteractive(ctx, set.Scopes)
	if err != nil {
		return tok, err
	}

	b.mu.Lock()
	b.signIns++
	b.mu.Unlock()

	return tok, nil
}

func (b *Broker) signInCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.signIns
}

func nonEmpty(tok identity.Token) (identity.Token, error) {
	if tok.AccessToken == "" {
		return tok, errors.New("provider returned an empty access token")
	}

	return tok, nil
}

// pickAccount returns the configured account, or the first one.
func (b *Broker) pickAccount(ctx context.Context) (identity.Account, error) {
	accounts, err := b.idp.Accounts(ctx)
	if err != nil {
		return identity.Account{}, fmt.Errorf("listing accounts: %w", err)
	}

	if len(accounts) == 0 {
		return identity.Account{}, ErrNoAccount
	}

	if b.cfg.Account == "" {
		return accounts[0], nil
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Username, b.cfg.Account) {
			return a, nil
		}
	}

	return identity.Account{}, fmt.Errorf("%w: %s", ErrNoAccount, b.cfg.Account)
}

func (b *Broker) generationNow() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.generation
}

// setState records a state transition for an acquisition started in gen.
// Transitions of an acquisition orphaned by Reset are dropped so they never
// overwrite the record of the current session.
func (b *Broker) setState(key string, gen uint64, state State, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}

	rec, ok := b.records[key]
	if !ok {
		rec = &record{}
		b.records[key] = rec
	}

	rec.state = state
	rec.err = err
}

// store caches tok unless the session was reset after gen was taken.
func (b *Broker) store(key string, gen uint64, tok identity.Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return false
	}

	b.records[key] = &record{
		token:  tok.AccessToken,
		expiry: tok.Expiry,
		state:  StateCached,
	}

	return true
}

// Reset forgets every cached token, e.g. after sign-out. Acquisitions still
// in flight complete but their tokens are neither cached nor returned.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = make(map[string]*record)
	b.generation++

	b.logger.Info("token cache cleared")
}

// Source binds the broker to one scope set as an httpapi.TokenSource.
func (b *Broker) Source(set ScopeSet) *Source {
	return &Source{broker: b, set: set}
}

// Source is a Broker bound to one scope set.
type Source struct {
	broker *Broker
	set    ScopeSet
}

// Token returns a token for the bound scope set.
func (s *Source) Token(ctx context.Context) (string, error) {
	return s.broker.Token(ctx, s.set)
}
