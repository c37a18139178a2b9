package kbapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultTopK is the number of passages retrieved when none is given.
const DefaultTopK = 5

// ErrInvalidScore is returned when a citation score falls outside [0, 1].
var ErrInvalidScore = errors.New("kbapi: citation score out of range")

// QueryRequest asks the backend a question.
type QueryRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	TenantID string `json:"tenant_id"`
}

// QueryResponse is the backend's answer.
type QueryResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	LatencyMS float64    `json:"latency_ms"`
}

// Citation is a source passage supporting an answer.
type Citation struct {
	DocID       string  `json:"doc_id"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
	// PageRange is nil when the source has no pages.
	PageRange   *[2]int `json:"page_range"`
	OneDriveURL string  `json:"onedrive_url"`
}

// Query asks a question and returns the answer with its citations.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	var resp QueryResponse
	if err := c.api.PostJSON(ctx, queryPath, req, &resp); err != nil {
		return nil, fmt.Errorf("kbapi: querying: %w", err)
	}

	for i, cit := range resp.Citations {
		if cit.Score < 0 || cit.Score > 1 {
			return nil, fmt.Errorf("%w: citation %d (%s) has score %g", ErrInvalidScore, i, cit.DocID, cit.Score)
		}
	}

	c.logger.Debug("query answered",
		slog.Int("citations", len(resp.Citations)),
		slog.Float64("latency_ms", resp.LatencyMS),
	)

	return &resp, nil
}
