package ingest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/history"
	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
	"github.com/tonimelisma/onedrive-kb/internal/selection"
	"github.com/tonimelisma/onedrive-kb/internal/tree"
)

type listerFunc func(ctx context.Context, parentID string) ([]graph.Item, error)

func (f listerFunc) ListChildren(ctx context.Context, parentID string) ([]graph.Item, error) {
	return f(ctx, parentID)
}

type fakeBackend struct {
	reqs []kbapi.IngestRequest
	resp *kbapi.IngestResponse
	err  error
}

func (b *fakeBackend) Ingest(_ context.Context, req kbapi.IngestRequest) (*kbapi.IngestResponse, error) {
	b.reqs = append(b.reqs, req)

	if b.err != nil {
		return nil, b.err
	}

	if b.resp != nil {
		return b.resp, nil
	}

	return &kbapi.IngestResponse{Processed: len(req.Documents)}, nil
}

type fakeProfile struct {
	user  *graph.User
	err   error
	calls int
}

func (p *fakeProfile) Me(context.Context) (*graph.User, error) {
	p.calls++
	return p.user, p.err
}

// fixture: root = [A.pdf (url), B folder (no url)], B = [C.docx (url), D.txt (no url)].
type fixture struct {
	store   *tree.Store
	sel     *selection.Engine
	backend *fakeBackend
	profile *fakeProfile
	history *history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lister := listerFunc(func(_ context.Context, parentID string) ([]graph.Item, error) {
		switch parentID {
		case graph.RootID:
			return []graph.Item{
				{ID: "A", Name: "A.pdf", DownloadURL: "https://dl/A"},
				{ID: "B", Name: "B", IsFolder: true, ChildCount: 2},
			}, nil
		case "B":
			return []graph.Item{
				{ID: "C", Name: "C.docx", DownloadURL: "https://dl/C"},
				{ID: "D", Name: "D.txt"},
			}, nil
		default:
			return nil, nil
		}
	})

	store := tree.NewStore(lister, time.Second, slog.Default())
	t.Cleanup(store.Close)
	require.NoError(t, store.LoadRoot(context.Background()))

	hist, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	return &fixture{
		store:   store,
		sel:     selection.NewEngine(store, slog.Default()),
		backend: &fakeBackend{},
		profile: &fakeProfile{user: &graph.User{DisplayName: "Alice Example", Email: "alice@contoso.com"}},
		history: hist,
	}
}

func (f *fixture) submitter(cfg Config) *Submitter {
	return NewSubmitter(f.store, f.sel, f.backend, f.profile, f.history, cfg, slog.Default())
}

func TestSubmit_ExcludesNodesWithoutURL(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.ToggleExpand(context.Background(), "B"))

	require.NoError(t, f.sel.Toggle("A"))
	require.NoError(t, f.sel.Toggle("C"))
	require.NoError(t, f.sel.Toggle("D"))
	require.Equal(t, 3, f.sel.Len())

	res, err := f.submitter(Config{Account: "alice@contoso.com"}).Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.SelectedCount)
	require.Len(t, f.backend.reqs, 1)
	assert.Equal(t, []string{"https://dl/A", "https://dl/C"}, f.backend.reqs[0].Documents)
	assert.Equal(t, "Alice Example", f.backend.reqs[0].UserName)
	assert.Equal(t, "alice@contoso.com", f.backend.reqs[0].UserEmail)
	assert.Len(t, res.Submitted, 2)
	assert.Equal(t, 0, f.sel.Len(), "selection cleared after success")

	rec, err := f.history.Get(context.Background(), res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSucceeded, rec.Status)
	assert.Equal(t, 3, rec.SelectedCount)
	assert.Equal(t, 2, rec.SubmittedCount)
	assert.Equal(t, []history.Item{{ID: "A", Name: "A.pdf"}, {ID: "C", Name: "C.docx"}}, rec.Items)
}

func TestSubmit_PreOrderRegardlessOfSelectionOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.ToggleExpand(context.Background(), "B"))

	// Selecting B cascades to C and D; A is selected afterwards.
	require.NoError(t, f.sel.Toggle("B"))
	require.NoError(t, f.sel.Toggle("A"))

	_, err := f.submitter(Config{}).Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://dl/A", "https://dl/C"}, f.backend.reqs[0].Documents)
}

func TestSubmit_NonSuccessKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.backend.err = &httpapi.NetworkError{StatusCode: http.StatusInternalServerError, Body: "boom", Err: httpapi.ErrServerError}

	require.NoError(t, f.sel.Toggle("A"))
	before := f.sel.IDs()

	_, err := f.submitter(Config{}).Submit(context.Background())
	require.Error(t, err)

	var netErr *httpapi.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Equal(t, before, f.sel.IDs())

	recs, err := f.history.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.StatusFailed, recs[0].Status)
	assert.Contains(t, recs[0].Error, "HTTP 500")
}

func TestSubmit_EmptySelection(t *testing.T) {
	f := newFixture(t)

	_, err := f.submitter(Config{}).Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, f.backend.reqs)
}

func TestSubmit_NothingSubmittable(t *testing.T) {
	f := newFixture(t)

	// B is an unexpanded folder with no download URL of its own.
	require.NoError(t, f.sel.Toggle("B"))

	_, err := f.submitter(Config{}).Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrNothingSubmittable)
	assert.Equal(t, 1, verr.SelectedCount)
	assert.Empty(t, f.backend.reqs)
	assert.Equal(t, 1, f.sel.Len(), "selection kept")

	recs, err := f.history.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "validation failures are not recorded")
}

func TestSubmit_ConfiguredRequesterSkipsProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sel.Toggle("A"))

	_, err := f.submitter(Config{Requester: Requester{Name: "Ops", Email: "ops@contoso.com"}}).
		Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, f.profile.calls)
	assert.Equal(t, "Ops", f.backend.reqs[0].UserName)
}

func TestSubmit_PartialRequesterFilledFromProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sel.Toggle("A"))

	_, err := f.submitter(Config{Requester: Requester{Name: "Ops"}}).Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.profile.calls)
	assert.Equal(t, "Ops", f.backend.reqs[0].UserName)
	assert.Equal(t, "alice@contoso.com", f.backend.reqs[0].UserEmail)
}

func TestSubmit_ProfileFailureKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.profile.err = errors.New("graph down")
	require.NoError(t, f.sel.Toggle("A"))

	_, err := f.submitter(Config{}).Submit(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.backend.reqs)
	assert.Equal(t, 1, f.sel.Len())
}

func TestSubmit_NoProfileAndNoRequester(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sel.Toggle("A"))

	s := NewSubmitter(f.store, f.sel, f.backend, nil, nil, Config{}, slog.Default())

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.backend.reqs)
}

func TestResult_Failures(t *testing.T) {
	f := newFixture(t)
	f.backend.resp = &kbapi.IngestResponse{
		Processed: 1,
		Results: []kbapi.ItemResult{
			{Filename: "A.pdf", Status: kbapi.StatusSuccess},
			{Filename: "C.docx", Status: kbapi.StatusFailed, Reason: "encrypted"},
			{Filename: "x.bin", Status: kbapi.StatusSkipped, Reason: "unsupported"},
		},
	}

	require.NoError(t, f.sel.Toggle("A"))

	res, err := f.submitter(Config{}).Submit(context.Background())
	require.NoError(t, err)

	failures := res.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "encrypted", failures[0].Reason)
	assert.Nil(t, (&Result{}).Failures())

	rec, err := f.history.Get(context.Background(), res.HistoryID)
	require.NoError(t, err)
	assert.Len(t, rec.Results, 3)
}
