package identity

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// deviceLogin runs the device code flow, blocking until the user approves
// on another device or ctx ends.
func deviceLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	show func(DeviceAuth),
	logger *slog.Logger,
) (*oauth2.Token, error) {
	logger.Info("starting device code sign-in")

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: device code request failed: %w", err)
	}

	show(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("identity: device code authorization failed: %w", err)
	}

	return tok, nil
}
