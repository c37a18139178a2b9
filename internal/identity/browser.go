package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

const (
	stateBytes = 16
	// Root path matches the registered "http://localhost" redirect URI; the
	// v2.0 endpoint ignores the port but not the path.
	redirectPath    = "/"
	callbackTimeout = 5 * time.Second
)

type authResult struct {
	code string
	err  error
}

// browserLogin runs the authorization code + PKCE flow against a loopback
// redirect listener.
func browserLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	openURL func(string) error,
	logger *slog.Logger,
) (*oauth2.Token, error) {
	logger.Info("starting browser sign-in (authorization code + PKCE)")

	results := make(chan authResult, 1)
	mux := http.NewServeMux()

	srv, port, err := listenLoopback(ctx, mux, results, logger)
	if err != nil {
		return nil, err
	}

	defer closeLoopback(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d", port)

	verifier := oauth2.GenerateVerifier()

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("identity: generating state: %w", err)
	}

	mux.HandleFunc("GET "+redirectPath, func(w http.ResponseWriter, r *http.Request) {
		handleRedirect(w, r, state, results)
	})

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", openErr.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}

	var code string

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}

		code = res.code
	case <-ctx.Done():
		return nil, fmt.Errorf("identity: browser sign-in canceled: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("identity: exchanging authorization code: %w", err)
	}

	return tok, nil
}

func listenLoopback(
	ctx context.Context,
	mux *http.ServeMux,
	results chan<- authResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("identity: binding loopback listener: %w", err)
	}

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("identity: loopback listener address is not TCP")
	}

	logger.Debug("redirect listener ready", slog.Int("port", addr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: callbackTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case results <- authResult{err: fmt.Errorf("identity: redirect listener: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, addr.Port, nil
}

func handleRedirect(w http.ResponseWriter, r *http.Request, state string, results chan<- authResult) {
	q := r.URL.Query()

	var res authResult

	switch {
	case q.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		res.err = errors.New("identity: OAuth2 state mismatch")
	case q.Get("error") != "":
		http.Error(w, "Sign-in failed: "+q.Get("error"), http.StatusBadRequest)
		res.err = fmt.Errorf("identity: authorization failed: %s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		res.err = errors.New("identity: redirect missing authorization code")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Signed in</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")

		res.code = q.Get("code")
	}

	select {
	case results <- res:
	default:
	}
}

func closeLoopback(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("redirect listener shutdown error", slog.String("error", err.Error()))
	}
}

func randomState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
