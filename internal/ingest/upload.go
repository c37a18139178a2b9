package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/onedrive-kb/internal/history"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
)

// Upload validation failures.
var (
	ErrNoFiles           = errors.New("name at least one file to upload")
	ErrNothingUploadable = errors.New("none of the named files can be uploaded")
	ErrInvalidUser       = errors.New("invalid additional user")
)

// UploadBackend accepts manual uploads. kbapi.Client satisfies it.
type UploadBackend interface {
	UploadManual(ctx context.Context, req kbapi.UploadRequest) (*kbapi.IngestResponse, error)
}

// Rejected is a named file left out of an upload.
type Rejected struct {
	Path   string
	Reason string
}

// UploadResult describes a completed manual upload.
type UploadResult struct {
	// HistoryID is empty when no recorder is configured or recording failed.
	HistoryID string
	Uploaded  []string
	Rejected  []Rejected
	Response  *kbapi.IngestResponse
}

// Failures returns the per-file outcomes that were not ingested.
func (r *UploadResult) Failures() []kbapi.ItemResult {
	return (&Result{Response: r.Response}).Failures()
}

// Uploader sends local documents to the backend.
type Uploader struct {
	backend  UploadBackend
	recorder Recorder
	account  string
	logger   *slog.Logger
}

// NewUploader wires an Uploader. recorder may be nil to disable history.
func NewUploader(backend UploadBackend, recorder Recorder, account string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{backend: backend, recorder: recorder, account: account, logger: logger}
}

// ParseUsers splits a comma-separated email list, dropping blanks.
func ParseUsers(list string) ([]string, error) {
	var users []string

	for _, raw := range strings.Split(list, ",") {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}

		addr, err := mail.ParseAddress(u)
		if err != nil || addr.Address != u {
			return nil, &ValidationError{Err: fmt.Errorf("%w: %q", ErrInvalidUser, u)}
		}

		users = append(users, u)
	}

	return users, nil
}

// Upload checks each path and sends the acceptable ones in one request.
// Files with an unsupported extension, that are not regular files or that
// exceed kbapi.MaxUploadSize are reported in Rejected and not sent.
func (u *Uploader) Upload(ctx context.Context, paths, users []string) (*UploadResult, error) {
	if len(paths) == 0 {
		return nil, &ValidationError{Err: ErrNoFiles}
	}

	res := &UploadResult{}

	var (
		files  []kbapi.UploadFile
		opened []*os.File
	)

	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, p := range paths {
		f, reason := openUploadable(p)
		if reason != "" {
			u.logger.Debug("rejecting file", slog.String("path", p), slog.String("reason", reason))
			res.Rejected = append(res.Rejected, Rejected{Path: p, Reason: reason})

			continue
		}

		opened = append(opened, f)
		files = append(files, kbapi.UploadFile{Name: filepath.Base(p), Content: f})
		res.Uploaded = append(res.Uploaded, p)
	}

	if len(files) == 0 {
		return res, &ValidationError{Err: ErrNothingUploadable, SelectedCount: len(paths)}
	}

	u.logger.Info("uploading files",
		slog.Int("named", len(paths)),
		slog.Int("files", len(files)),
	)

	resp, err := u.backend.UploadManual(ctx, kbapi.UploadRequest{Files: files, AdditionalUsers: users})
	if err != nil {
		err = fmt.Errorf("ingest: uploading %d files: %w", len(files), err)
		u.record(ctx, res, len(paths), err)

		return nil, err
	}

	res.Response = resp
	u.record(ctx, res, len(paths), nil)

	return res, nil
}

// openUploadable opens path for reading, or returns why it cannot be sent.
func openUploadable(path string) (*os.File, string) {
	if _, ok := kbapi.UploadType(path); !ok {
		return nil, "unsupported file type"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err.Error()
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err.Error()
	}

	if !info.Mode().IsRegular() {
		f.Close()
		return nil, "not a regular file"
	}

	if info.Size() > kbapi.MaxUploadSize {
		f.Close()
		return nil, fmt.Sprintf("larger than %d MB", kbapi.MaxUploadSize>>20)
	}

	return f, ""
}

func (u *Uploader) record(ctx context.Context, res *UploadResult, named int, upErr error) {
	if u.recorder == nil {
		return
	}

	sub := &history.Submission{
		Source:         history.SourceUpload,
		Account:        u.account,
		SelectedCount:  named,
		SubmittedCount: len(res.Uploaded),
		Status:         history.StatusSucceeded,
	}

	for _, p := range res.Uploaded {
		sub.Items = append(sub.Items, history.Item{ID: p, Name: filepath.Base(p)})
	}

	if upErr != nil {
		sub.Status = history.StatusFailed
		sub.Error = upErr.Error()
	}

	if res.Response != nil {
		sub.Processed = res.Response.Processed
		sub.TotalChunks = res.Response.TotalChunks
		sub.Results = historyResults(res.Response.Results)
	}

	id, err := u.recorder.Record(context.WithoutCancel(ctx), sub)
	if err != nil {
		u.logger.Warn("failed to record upload", slog.String("error", err.Error()))
		return
	}

	res.HistoryID = id
}

func historyResults(results []kbapi.ItemResult) []history.Result {
	out := make([]history.Result, 0, len(results))

	for _, r := range results {
		out = append(out, history.Result{
			Filename: r.Filename,
			Status:   r.Status,
			Chunks:   r.Chunks,
			Reason:   r.Reason,
		})
	}

	return out
}
