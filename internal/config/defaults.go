package config

// Default values for configuration options, layer 0 of the override chain.
const (
	// Same value as identity.DefaultClientID.
	defaultClientID        = "8efac532-bbe7-4bc5-919c-1443ccab860a"
	defaultTenant          = "common"
	defaultInteractiveFlow = FlowBrowser
	defaultAcquireTimeout  = "5m"
	defaultGraphBaseURL    = "https://graph.microsoft.com/v1.0"
	defaultBackendURL      = "http://localhost:8000"
	defaultTopK            = 5
	defaultRequestTimeout  = "30s"
	defaultUserAgent       = "onedrive-kb"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Interactive sign-in flows.
const (
	FlowBrowser = "browser"
	FlowDevice  = "device"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			ClientID:        defaultClientID,
			Tenant:          defaultTenant,
			FilesScopes:     []string{"Files.Read.All", "User.Read"},
			InteractiveFlow: defaultInteractiveFlow,
			AcquireTimeout:  defaultAcquireTimeout,
		},
		Graph: GraphConfig{BaseURL: defaultGraphBaseURL},
		Backend: BackendConfig{
			BaseURL: defaultBackendURL,
			TopK:    defaultTopK,
		},
		Network: NetworkConfig{
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		History: HistoryConfig{Enabled: true},
	}
}
