package graph

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadURL_RedactedInLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("collected document",
		"url", DownloadURL("https://public.bn1304.livefilestore.com/y4msecret-token-here/file.txt"))

	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "secret-token-here")
}

func TestDownloadURL_EmptyStaysEmpty(t *testing.T) {
	t.Parallel()

	var empty DownloadURL
	assert.Equal(t, "", empty.LogValue().String())
}
