package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-kb/internal/config"
)

// newRootCmd binds flags with BoolVar/StringVar, which resets the globals to
// their defaults. Tests set globals after building the command, or let cobra
// parse them through SetArgs.

func setLoggerState(t *testing.T, cfg *config.Resolved, verbose, quiet bool) {
	t.Helper()

	oldCfg, oldVerbose, oldQuiet := resolvedCfg, flagVerbose, flagQuiet

	t.Cleanup(func() {
		resolvedCfg, flagVerbose, flagQuiet = oldCfg, oldVerbose, oldQuiet
	})

	resolvedCfg, flagVerbose, flagQuiet = cfg, verbose, quiet
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		cfgLevel string
		verbose  bool
		quiet    bool
		enabled  slog.Level
		disabled slog.Level
	}{
		{"default info", "", false, false, slog.LevelInfo, slog.LevelDebug},
		{"config warn", "warn", false, false, slog.LevelWarn, slog.LevelInfo},
		{"config error", "error", false, false, slog.LevelError, slog.LevelWarn},
		{"verbose beats config", "error", true, false, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet beats config", "debug", false, true, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLoggerState(t, &config.Resolved{LogLevel: tt.cfgLevel, LogFormat: "text"}, tt.verbose, tt.quiet)

			h := newLogger(&bytes.Buffer{}, true).Handler()
			assert.True(t, h.Enabled(context.Background(), tt.enabled))
			assert.False(t, h.Enabled(context.Background(), tt.disabled))
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format   string
		terminal bool
		wantJSON bool
	}{
		{"json", true, true},
		{"text", false, false},
		{"auto", true, false},
		{"auto", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			setLoggerState(t, &config.Resolved{LogLevel: "info", LogFormat: tt.format}, false, false)

			_, isJSON := newLogger(&bytes.Buffer{}, tt.terminal).Handler().(*slog.JSONHandler)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestNewLogger_NoConfigUsesTextOnTerminal(t *testing.T) {
	setLoggerState(t, nil, false, false)

	var buf bytes.Buffer
	newLogger(&buf, true).Info("hello", slog.String("k", "v"))

	assert.Contains(t, buf.String(), "msg=hello k=v")
}

func TestRootCmd_ConfigErrorsStopCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nbase_ur = \"http://x\"\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "config", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "base_url")
}

func TestRootCmd_BackendFlagOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nbase_url = \"http://file.example\"\n"), 0o600))

	t.Cleanup(func() { resolvedCfg = nil })

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--backend", "http://flag.example/", "--account", "bob@example.com", "config", "show", "--json"})
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)

	stdout := os.Stdout
	os.Stdout = devnull

	t.Cleanup(func() {
		os.Stdout = stdout
		devnull.Close()
	})

	require.NoError(t, cmd.Execute())
	require.NotNil(t, resolvedCfg)
	assert.Equal(t, "http://flag.example", resolvedCfg.BackendURL)
	assert.Equal(t, "bob@example.com", resolvedCfg.Account)
	assert.Equal(t, path, resolvedCfg.ConfigPath)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"login", "logout", "whoami", "ls", "browse", "upload", "ask", "history", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}
