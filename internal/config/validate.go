package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Validation range constants.
const (
	minTopK           = 1
	maxTopK           = 50
	minAcquireTimeout = 10 * time.Second
	minRequestTimeout = 1 * time.Second
	maxRequestTimeout = 10 * time.Minute
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
	validFlows      = []string{FlowBrowser, FlowDevice}
)

// Validate checks all configuration values and returns every error found,
// joined, so users can fix them all in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateURL("graph.base_url", cfg.Graph.BaseURL)...)
	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if strings.TrimSpace(a.ClientID) == "" {
		errs = append(errs, errors.New("auth.client_id: must not be empty"))
	}

	if strings.TrimSpace(a.Tenant) == "" {
		errs = append(errs, errors.New("auth.tenant: must not be empty"))
	}

	if len(a.FilesScopes) == 0 {
		errs = append(errs, errors.New("auth.files_scopes: must list at least one scope"))
	}

	errs = append(errs, validateScopes("auth.files_scopes", a.FilesScopes)...)
	errs = append(errs, validateScopes("auth.api_scopes", a.APIScopes)...)

	if !slices.Contains(validFlows, a.InteractiveFlow) {
		errs = append(errs, fmt.Errorf("auth.interactive_flow: must be one of %s, got %q",
			strings.Join(validFlows, ", "), a.InteractiveFlow))
	}

	if d, err := time.ParseDuration(a.AcquireTimeout); err != nil {
		errs = append(errs, fmt.Errorf("auth.acquire_timeout: invalid duration %q: %w", a.AcquireTimeout, err))
	} else if d < minAcquireTimeout {
		errs = append(errs, fmt.Errorf("auth.acquire_timeout: must be at least %s, got %s", minAcquireTimeout, d))
	}

	return errs
}

func validateScopes(field string, scopes []string) []error {
	var errs []error

	for i, s := range scopes {
		if strings.TrimSpace(s) == "" || strings.ContainsAny(s, " \t") {
			errs = append(errs, fmt.Errorf("%s[%d]: invalid scope %q", field, i, s))
		}
	}

	return errs
}

func validateURL(field, raw string) []error {
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", field, raw)}
	}

	return nil
}

func validateBackend(b *BackendConfig) []error {
	errs := validateURL("backend.base_url", b.BaseURL)

	if b.TopK < minTopK || b.TopK > maxTopK {
		errs = append(errs, fmt.Errorf("backend.top_k: must be between %d and %d, got %d", minTopK, maxTopK, b.TopK))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.RequestTimeout)
	if err != nil {
		return []error{fmt.Errorf("network.request_timeout: invalid duration %q: %w", n.RequestTimeout, err)}
	}

	if d < minRequestTimeout || d > maxRequestTimeout {
		return []error{fmt.Errorf("network.request_timeout: must be between %s and %s, got %s",
			minRequestTimeout, maxRequestTimeout, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, l.LogLevel) {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), l.LogLevel))
	}

	if !slices.Contains(validLogFormats, l.LogFormat) {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of %s, got %q",
			strings.Join(validLogFormats, ", "), l.LogFormat))
	}

	return errs
}
