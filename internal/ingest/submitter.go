// Package ingest submits the selected documents to the knowledge-base
// backend.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/history"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
	"github.com/tonimelisma/onedrive-kb/internal/tree"
)

// Validation failures.
var (
	ErrEmptySelection     = errors.New("select at least one file or folder")
	ErrNothingSubmittable = errors.New("no selected item has a download URL")
)

// ValidationError reports a payload problem found before anything is sent.
type ValidationError struct {
	Err error
	// SelectedCount is the number of selected ids when validation failed.
	SelectedCount int
}

func (e *ValidationError) Error() string {
	return "ingest: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Arena walks loaded nodes in pre-order. tree.Store satisfies it.
type Arena interface {
	Walk(fn func(e tree.Entry) bool)
}

// Selection is the selected id set. selection.Engine satisfies it.
type Selection interface {
	IDs() []string
	DeselectAll()
}

// Backend accepts ingestion requests. kbapi.Client satisfies it.
type Backend interface {
	Ingest(ctx context.Context, req kbapi.IngestRequest) (*kbapi.IngestResponse, error)
}

// Profile returns the signed-in user. graph.Client satisfies it.
type Profile interface {
	Me(ctx context.Context) (*graph.User, error)
}

// Recorder stores submission attempts. history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, sub *history.Submission) (string, error)
}

// Requester names the person a submission is made for.
type Requester struct {
	Name  string
	Email string
}

func (r Requester) complete() bool {
	return r.Name != "" && r.Email != ""
}

// Config configures a Submitter.
type Config struct {
	// Requester overrides the profile lookup field by field.
	Requester Requester
	// Account is recorded with each submission.
	Account string
}

// Document is one submitted node.
type Document struct {
	ID   string
	Name string
	URL  string
}

// Result describes a completed submission.
type Result struct {
	// HistoryID is empty when no recorder is configured or recording failed.
	HistoryID     string
	SelectedCount int
	Submitted     []Document
	Response      *kbapi.IngestResponse
}

// Failures returns the per-document outcomes that were not ingested.
func (r *Result) Failures() []kbapi.ItemResult {
	if r.Response == nil {
		return nil
	}

	var out []kbapi.ItemResult

	for _, it := range r.Response.Results {
		if it.Failed() {
			out = append(out, it)
		}
	}

	return out
}

// Submitter turns the current selection into one ingestion request.
type Submitter struct {
	arena    Arena
	sel      Selection
	backend  Backend
	profile  Profile
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
}

// NewSubmitter wires a Submitter. profile may be nil when cfg.Requester is
// complete; recorder may be nil to disable history.
func NewSubmitter(
	arena Arena, sel Selection, backend Backend, profile Profile, recorder Recorder,
	cfg Config, logger *slog.Logger,
) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Submitter{
		arena:    arena,
		sel:      sel,
		backend:  backend,
		profile:  profile,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit posts the download URLs of the selected nodes in tree pre-order.
// The selection is cleared only when the backend accepts the request.
func (s *Submitter) Submit(ctx context.Context) (*Result, error) {
	ids := s.sel.IDs()
	if len(ids) == 0 {
		return nil, &ValidationError{Err: ErrEmptySelection}
	}

	docs := s.resolve(ids)
	if len(docs) == 0 {
		return nil, &ValidationError{Err: ErrNothingSubmittable, SelectedCount: len(ids)}
	}

	res := &Result{SelectedCount: len(ids), Submitted: docs}

	requester, err := s.requester(ctx)
	if err != nil {
		s.record(ctx, res, requester, err)
		return nil, err
	}

	urls := make([]string, len(docs))
	for i, d := range docs {
		urls[i] = d.URL
	}

	s.logger.Info("submitting selection",
		slog.Int("selected", len(ids)),
		slog.Int("documents", len(docs)),
	)

	resp, err := s.backend.Ingest(ctx, kbapi.IngestRequest{
		UserName:  requester.Name,
		UserEmail: requester.Email,
		Documents: urls,
	})
	if err != nil {
		err = fmt.Errorf("ingest: submitting %d documents: %w", len(docs), err)
		s.record(ctx, res, requester, err)

		return nil, err
	}

	res.Response = resp
	s.sel.DeselectAll()
	s.record(ctx, res, requester, nil)

	if failures := res.Failures(); len(failures) > 0 {
		s.logger.Warn("some documents were not ingested", slog.Int("count", len(failures)))
	}

	return res, nil
}

// resolve maps selected ids to submittable documents in arena pre-order.
func (s *Submitter) resolve(ids []string) []Document {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var docs []Document

	s.arena.Walk(func(e tree.Entry) bool {
		if _, ok := want[e.Node.ID]; !ok {
			return true
		}

		delete(want, e.Node.ID)

		if e.Node.DownloadURL != "" {
			docs = append(docs, Document{ID: e.Node.ID, Name: e.Node.Name, URL: string(e.Node.DownloadURL)})
		}

		return true
	})

	if len(want) > 0 {
		s.logger.Debug("skipping selected ids not in the tree", slog.Int("count", len(want)))
	}

	return docs
}

func (s *Submitter) requester(ctx context.Context) (Requester, error) {
	r := s.cfg.Requester
	if r.complete() {
		return r, nil
	}

	if s.profile == nil {
		return r, errors.New("ingest: requester name and email not configured")
	}

	me, err := s.profile.Me(ctx)
	if err != nil {
		return r, fmt.Errorf("ingest: resolving requester: %w", err)
	}

	if r.Name == "" {
		r.Name = me.DisplayName
	}

	if r.Email == "" {
		r.Email = me.Email
	}

	return r, nil
}

func (s *Submitter) record(ctx context.Context, res *Result, requester Requester, subErr error) {
	if s.recorder == nil {
		return
	}

	sub := &history.Submission{
		Source:         history.SourceOneDrive,
		Account:        s.cfg.Account,
		RequesterName:  requester.Name,
		RequesterEmail: requester.Email,
		SelectedCount:  res.SelectedCount,
		SubmittedCount: len(res.Submitted),
		Status:         history.StatusSucceeded,
	}

	for _, d := range res.Submitted {
		sub.Items = append(sub.Items, history.Item{ID: d.ID, Name: d.Name})
	}

	if subErr != nil {
		sub.Status = history.StatusFailed
		sub.Error = subErr.Error()
	}

	if res.Response != nil {
		sub.Processed = res.Response.Processed
		sub.TotalChunks = res.Response.TotalChunks
		sub.Results = historyResults(res.Response.Results)
	}

	// Canceled submissions are recorded too.
	id, err := s.recorder.Record(context.WithoutCancel(ctx), sub)
	if err != nil {
		s.logger.Warn("failed to record submission", slog.String("error", err.Error()))
		return
	}

	res.HistoryID = id
}
