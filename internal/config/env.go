package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "ONEDRIVE_KB_CONFIG"
	EnvBackendURL = "ONEDRIVE_KB_BACKEND_URL"
	EnvTenantID   = "ONEDRIVE_KB_TENANT_ID"
)

// EnvOverrides holds values read from environment variables.
type EnvOverrides struct {
	ConfigPath string
	BackendURL string
	TenantID   string
}

// ReadEnvOverrides reads the override environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BackendURL: os.Getenv(EnvBackendURL),
		TenantID:   os.Getenv(EnvTenantID),
	}
}
