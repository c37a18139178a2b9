package kbapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
)

// Per-document outcomes reported by the backend.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// IngestRequest is one ingestion submission.
type IngestRequest struct {
	UserName  string
	UserEmail string
	// Documents are download URLs, in submission order.
	Documents []string
}

// IngestResponse is the backend's summary of a submission.
type IngestResponse struct {
	Processed   int          `json:"processed"`
	TotalChunks int          `json:"total_chunks"`
	Results     []ItemResult `json:"results"`
}

// ItemResult is the outcome for one submitted document.
type ItemResult struct {
	Filename string   `json:"filename"`
	Status   string   `json:"status"`
	Chunks   *int     `json:"chunks,omitempty"`
	SizeMB   *float64 `json:"size_mb,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Failed reports whether the document was not ingested.
func (r ItemResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusSkipped
}

// Ingest posts documents as a multipart form with the fields userName,
// userEmail and documents (a JSON array of URLs).
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	docs := req.Documents
	if docs == nil {
		docs = []string{}
	}

	encodedDocs, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("kbapi: encoding documents: %w", err)
	}

	var buf bytes.Buffer

	form := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"userName", req.UserName},
		{"userEmail", req.UserEmail},
		{"documents", string(encodedDocs)},
	}

	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("kbapi: writing form field %s: %w", f[0], err)
		}
	}

	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("kbapi: closing form: %w", err)
	}

	c.logger.Info("submitting documents for ingestion", slog.Int("documents", len(docs)))

	var resp IngestResponse
	if err := c.api.PostBody(ctx, ingestPath, form.FormDataContentType(), &buf, &resp); err != nil {
		return nil, fmt.Errorf("kbapi: ingesting documents: %w", err)
	}

	c.logger.Info("ingestion accepted",
		slog.Int("processed", resp.Processed),
		slog.Int("total_chunks", resp.TotalChunks),
	)

	return &resp, nil
}
