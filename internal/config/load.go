package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal and carry "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.BackendURL != "" {
		cfg.Backend.BaseURL = env.BackendURL
	}

	if env.TenantID != "" {
		cfg.Backend.TenantID = env.TenantID
	}

	if cli.BackendURL != "" {
		cfg.Backend.BaseURL = cli.BackendURL
	}

	if cli.Account != "" {
		cfg.Auth.Account = cli.Account
	}

	// Overrides can introduce bad values the file check never saw.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolve(cfg, cfgPath), nil
}

// resolve converts a validated Config. Durations are known to parse.
func resolve(cfg *Config, path string) *Resolved {
	acquire, _ := time.ParseDuration(cfg.Auth.AcquireTimeout)
	request, _ := time.ParseDuration(cfg.Network.RequestTimeout)

	dbPath := expandTilde(cfg.History.DBPath)
	if dbPath == "" {
		dbPath = DefaultHistoryPath()
	}

	return &Resolved{
		ConfigPath:      path,
		ClientID:        cfg.Auth.ClientID,
		Tenant:          cfg.Auth.Tenant,
		Account:         cfg.Auth.Account,
		FilesScopes:     slices.Clone(cfg.Auth.FilesScopes),
		APIScopes:       slices.Clone(cfg.Auth.APIScopes),
		InteractiveFlow: cfg.Auth.InteractiveFlow,
		AcquireTimeout:  acquire,
		TokenDir:        DefaultTokenDir(),
		GraphBaseURL:    strings.TrimRight(cfg.Graph.BaseURL, "/"),
		BackendURL:      strings.TrimRight(cfg.Backend.BaseURL, "/"),
		TenantID:        cfg.Backend.TenantID,
		TopK:            cfg.Backend.TopK,
		RequesterName:   cfg.Requester.Name,
		RequesterEmail:  cfg.Requester.Email,
		RequestTimeout:  request,
		UserAgent:       cfg.Network.UserAgent,
		LogLevel:        cfg.Logging.LogLevel,
		LogFormat:       cfg.Logging.LogFormat,
		HistoryEnabled:  cfg.History.Enabled,
		HistoryDBPath:   dbPath,
	}
}

// ErrNoAPIScopes is returned by RequireBackend when auth.api_scopes is empty.
var ErrNoAPIScopes = errors.New("auth.api_scopes is not configured; set it to the backend's API scope " +
	`(for example "api://<backend-client-id>/user_impersonation")`)

// RequireBackend reports whether the backend commands can run.
func (r *Resolved) RequireBackend() error {
	if len(r.APIScopes) == 0 {
		return ErrNoAPIScopes
	}

	return nil
}
