package kbapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
)

func TestUploadManual_MultipartForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload-manual", r.URL.Path)
		assert.Equal(t, "Bearer api-token", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bob@contoso.com, carol@contoso.com", r.FormValue("additional_users"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "notes.txt", files[0].Filename)
		assert.Equal(t, "text/plain", files[0].Header.Get("Content-Type"))
		assert.Equal(t, "Deck.PPTX", files[1].Filename)
		assert.Equal(t,
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			files[1].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		f.Close()
		assert.Equal(t, "hello", string(body))

		_, _ = w.Write([]byte(`{
			"processed": 1,
			"total_chunks": 3,
			"results": [
				{"filename": "notes.txt", "status": "success", "chunks": 3, "size_mb": 0.01},
				{"filename": "Deck.PPTX", "status": "failed", "reason": "corrupt file"}
			]
		}`))
	})

	resp, err := client.UploadManual(context.Background(), UploadRequest{
		Files: []UploadFile{
			{Name: "notes.txt", Content: strings.NewReader("hello")},
			{Name: "Deck.PPTX", Content: strings.NewReader("slides")},
		},
		AdditionalUsers: []string{"bob@contoso.com", "carol@contoso.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 3, resp.TotalChunks)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, StatusSuccess, resp.Results[0].Status)
	assert.True(t, resp.Results[1].Failed())
}

func TestUploadManual_NoAdditionalUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{""}, r.MultipartForm.Value["additional_users"])
		_, _ = w.Write([]byte(`{"processed":1,"total_chunks":1,"results":[]}`))
	})

	_, err := client.UploadManual(context.Background(), UploadRequest{
		Files: []UploadFile{{Name: "a.pdf", Content: strings.NewReader("%PDF")}},
	})
	require.NoError(t, err)
}

func TestUploadManual_NetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte("too large"))
	})

	_, err := client.UploadManual(context.Background(), UploadRequest{
		Files: []UploadFile{{Name: "a.pdf", Content: strings.NewReader("%PDF")}},
	})
	require.Error(t, err)

	var netErr *httpapi.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, netErr.StatusCode)
}

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) {
	return "", errors.New("no api token")
}

func TestUploadManual_TokenErrorReturnsWithoutSending(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, srv.Client(), failingToken{}, slog.Default(), "")

	_, err := client.UploadManual(context.Background(), UploadRequest{
		Files: []UploadFile{{Name: "a.pdf", Content: strings.NewReader(strings.Repeat("x", 1<<20))}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no api token")
	assert.Zero(t, hits.Load())
}

func TestUploadType(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"report.pdf", "application/pdf", true},
		{"REPORT.DOCX", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"legacy.doc", "application/msword", true},
		{"slides.ppt", "application/vnd.ms-powerpoint", true},
		{"readme.txt", "text/plain", true},
		{"photo.jpg", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UploadType(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
