// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for onedrive-kb. Values come from a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Graph     GraphConfig     `toml:"graph"`
	Backend   BackendConfig   `toml:"backend"`
	Requester RequesterConfig `toml:"requester"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	History   HistoryConfig   `toml:"history"`
}

// AuthConfig controls sign-in and token acquisition.
type AuthConfig struct {
	ClientID string `toml:"client_id"`
	Tenant   string `toml:"tenant"`
	// Account selects a signed-in account by username when several exist.
	Account         string   `toml:"account"`
	FilesScopes     []string `toml:"files_scopes"`
	APIScopes       []string `toml:"api_scopes"`
	InteractiveFlow string   `toml:"interactive_flow"`
	AcquireTimeout  string   `toml:"acquire_timeout"`
}

// GraphConfig points at the Microsoft Graph endpoint.
type GraphConfig struct {
	BaseURL string `toml:"base_url"`
}

// BackendConfig points at the knowledge-base backend.
type BackendConfig struct {
	BaseURL  string `toml:"base_url"`
	TenantID string `toml:"tenant_id"`
	TopK     int    `toml:"top_k"`
}

// RequesterConfig overrides the identity sent with ingestion requests.
// Empty fields fall back to the signed-in user's profile.
type RequesterConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// HistoryConfig controls the local submission history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// CLIOverrides holds values from CLI flags. Empty strings mean "not given".
type CLIOverrides struct {
	ConfigPath string // --config
	BackendURL string // --backend
	Account    string // --account
}

// Resolved is the effective configuration after every layer is applied,
// with durations parsed and paths expanded.
type Resolved struct {
	ConfigPath string

	ClientID        string
	Tenant          string
	Account         string
	FilesScopes     []string
	APIScopes       []string
	InteractiveFlow string
	AcquireTimeout  time.Duration
	TokenDir        string

	GraphBaseURL string

	BackendURL string
	TenantID   string
	TopK       int

	RequesterName  string
	RequesterEmail string

	RequestTimeout time.Duration
	UserAgent      string

	LogLevel  string
	LogFormat string

	HistoryEnabled bool
	HistoryDBPath  string
}
