// Package kbapi is the client for the knowledge-base backend: document
// ingestion and question answering.
package kbapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
)

// Backend paths.
const (
	ingestPath = "/ingest_onedrive"
	queryPath  = "/query"
)

// Client talks to one backend deployment.
type Client struct {
	api    *httpapi.Client
	logger *slog.Logger
}

// NewClient creates a backend client. token must yield API-scope tokens,
// not Graph tokens.
func NewClient(baseURL string, httpClient *http.Client, token httpapi.TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:    httpapi.NewClient(strings.TrimRight(baseURL, "/"), httpClient, token, logger, userAgent),
		logger: logger,
	}
}
