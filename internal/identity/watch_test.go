package identity

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/onedrive-kb/internal/tokenfile"
)

func TestWatchSignOut_FiresOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := tokenfile.PathFor(dir, "alice@contoso.com")
	require.NoError(t, tokenfile.Save(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	require.NoError(t, WatchSignOut(ctx, dir, func(p string) { got <- p }, slog.Default()))

	// An atomic rewrite of a different account must not count as sign-out.
	require.NoError(t, tokenfile.Save(tokenfile.PathFor(dir, "bob@contoso.com"),
		&oauth2.Token{AccessToken: "b"}, nil))
	require.NoError(t, os.Remove(path))

	select {
	case p := <-got:
		require.Equal(t, filepath.Base(path), filepath.Base(p))
	case <-time.After(5 * time.Second):
		t.Fatal("sign-out callback not called")
	}
}

func TestWatchSignOut_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, WatchSignOut(ctx, dir, func(string) {}, slog.Default()))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
