package kbapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

const uploadPath = "/upload-manual"

// MaxUploadSize is the largest local file the backend accepts.
const MaxUploadSize = 80 << 20

// uploadTypes maps the accepted document extensions to their media types.
var uploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadType returns the media type for a file name the backend accepts,
// matching the extension case-insensitively.
func UploadType(name string) (string, bool) {
	t, ok := uploadTypes[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

// UploadFile is one local document. Content is read once while the request
// is sent.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// UploadRequest is a manual upload of local documents.
type UploadRequest struct {
	Files []UploadFile
	// AdditionalUsers are emails granted access besides the uploader.
	AdditionalUsers []string
}

// UploadManual streams files as a multipart form with one "files" part per
// document and an "additional_users" field holding a comma-separated list.
// The response has the same shape as an ingestion response.
func (c *Client) UploadManual(ctx context.Context, req UploadRequest) (*IngestResponse, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeUploadForm(form, req))
	}()

	c.logger.Info("uploading local documents", slog.Int("files", len(req.Files)))

	var resp IngestResponse
	err := c.api.PostBody(ctx, uploadPath, form.FormDataContentType(), pr, &resp)

	// Unblocks the writer when the request ended before the body was read.
	pr.Close()
	<-written

	if err != nil {
		return nil, fmt.Errorf("kbapi: uploading %d files: %w", len(req.Files), err)
	}

	c.logger.Info("upload accepted",
		slog.Int("processed", resp.Processed),
		slog.Int("total_chunks", resp.TotalChunks),
	)

	return &resp, nil
}

func writeUploadForm(form *multipart.Writer, req UploadRequest) error {
	for _, f := range req.Files {
		contentType, ok := UploadType(f.Name)
		if !ok {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
		h.Set("Content-Type", contentType)

		part, err := form.CreatePart(h)
		if err != nil {
			return fmt.Errorf("kbapi: creating part for %s: %w", f.Name, err)
		}

		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("kbapi: reading %s: %w", f.Name, err)
		}
	}

	if err := form.WriteField("additional_users", strings.Join(req.AdditionalUsers, ", ")); err != nil {
		return fmt.Errorf("kbapi: writing form field additional_users: %w", err)
	}

	return form.Close()
}
