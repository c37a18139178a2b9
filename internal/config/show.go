package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as an annotated summary
// to w. This powers "config show".
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	ew.printf("[auth]\n")
	ew.printf("  client_id        = %q\n", r.ClientID)
	ew.printf("  tenant           = %q\n", r.Tenant)

	if r.Account != "" {
		ew.printf("  account          = %q\n", r.Account)
	}

	ew.printf("  files_scopes     = [%s]\n", joinQuoted(r.FilesScopes))
	ew.printf("  api_scopes       = [%s]\n", joinQuoted(r.APIScopes))
	ew.printf("  interactive_flow = %q\n", r.InteractiveFlow)
	ew.printf("  acquire_timeout  = %q\n", r.AcquireTimeout.String())
	ew.printf("  # tokens: %s\n\n", r.TokenDir)

	ew.printf("[graph]\n")
	ew.printf("  base_url = %q\n\n", r.GraphBaseURL)

	ew.printf("[backend]\n")
	ew.printf("  base_url  = %q\n", r.BackendURL)
	ew.printf("  tenant_id = %q\n", r.TenantID)
	ew.printf("  top_k     = %d\n\n", r.TopK)

	if r.RequesterName != "" || r.RequesterEmail != "" {
		ew.printf("[requester]\n")
		ew.printf("  name  = %q\n", r.RequesterName)
		ew.printf("  email = %q\n\n", r.RequesterEmail)
	}

	ew.printf("[network]\n")
	ew.printf("  request_timeout = %q\n", r.RequestTimeout.String())
	ew.printf("  user_agent      = %q\n\n", r.UserAgent)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", r.LogLevel)
	ew.printf("  log_format = %q\n\n", r.LogFormat)

	ew.printf("[history]\n")
	ew.printf("  enabled = %t\n", r.HistoryEnabled)
	ew.printf("  db_path = %q\n", r.HistoryDBPath)

	return ew.err
}

// errWriter wraps an io.Writer and keeps the first write error; later
// writes are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
