// Package graph provides the Microsoft Graph directory client used to browse
// a user's OneDrive one folder at a time. It normalizes raw driveItem JSON
// into Item values and never retries: failures surface as
// *httpapi.NetworkError for the caller to present.
package graph

import (
	"log/slog"
	"net/http"

	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// RootID addresses the drive root in ListChildren.
const RootID = "root"

// Client is the directory-listing client. It is stateless apart from its
// transport; every call fetches fresh data.
type Client struct {
	api    *httpapi.Client
	logger *slog.Logger
}

// NewClient creates a Graph client. token should yield tokens for the
// directory-listing scope set.
func NewClient(baseURL string, httpClient *http.Client, token httpapi.TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:    httpapi.NewClient(baseURL, httpClient, token, logger, userAgent),
		logger: logger,
	}
}
