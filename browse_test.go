package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-kb/internal/config"
	"github.com/tonimelisma/onedrive-kb/internal/graph"
	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
	"github.com/tonimelisma/onedrive-kb/internal/ingest"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
	"github.com/tonimelisma/onedrive-kb/internal/selection"
	"github.com/tonimelisma/onedrive-kb/internal/tree"
)

// mapLister serves fixed listings keyed by parent id.
type mapLister map[string][]graph.Item

func (m mapLister) ListChildren(_ context.Context, parentID string) ([]graph.Item, error) {
	items, ok := m[parentID]
	if !ok {
		return nil, &httpapi.NetworkError{StatusCode: 404, Body: "itemNotFound", Err: httpapi.ErrNotFound}
	}

	return items, nil
}

// fakeSubmitter records calls and clears the selection on success like the
// real submitter.
type fakeSubmitter struct {
	sel   *selection.Engine
	err   error
	calls int
}

func (f *fakeSubmitter) Submit(context.Context) (*ingest.Result, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	selected := f.sel.Len()
	f.sel.DeselectAll()

	one := 3

	return &ingest.Result{
		HistoryID:     "hist-1",
		SelectedCount: selected,
		Submitted:     []ingest.Document{{ID: "A", Name: "A.pdf"}},
		Response: &kbapi.IngestResponse{
			Processed:   1,
			TotalChunks: 3,
			Results: []kbapi.ItemResult{
				{Filename: "A.pdf", Status: kbapi.StatusSuccess, Chunks: &one},
				{Filename: "scan.tiff", Status: kbapi.StatusSkipped, Reason: "unsupported type"},
			},
		},
	}, nil
}

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()

	color.NoColor = true

	lister := mapLister{
		graph.RootID: {
			{ID: "F", Name: "Reports", IsFolder: true, ChildCount: 2},
			{ID: "A", Name: "A.pdf", ChildCount: graph.ChildCountUnknown, DownloadURL: "https://dl/A"},
		},
		"F": {
			{ID: "B", Name: "B.docx", ChildCount: graph.ChildCountUnknown, DownloadURL: "https://dl/B"},
			{ID: "N", Name: "notes", ChildCount: graph.ChildCountUnknown},
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := tree.NewStore(lister, time.Second, logger)
	t.Cleanup(store.Close)

	var out bytes.Buffer

	sh := &shell{
		store:  store,
		sel:    selection.NewEngine(store, logger),
		out:    &out,
		logger: logger,
	}

	return sh, &out
}

func TestShell_LsLoadsRootAndNumbersEntries(t *testing.T) {
	sh, out := newTestShell(t)

	assert.False(t, sh.exec(context.Background(), "ls"))

	assert.Equal(t, "   1 [ ] + Reports/  (2)\n   2 [ ]   A.pdf\n", out.String())
}

func TestShell_OpenExpandsAndIndents(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")
	out.Reset()

	sh.exec(ctx, "open 1")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "   1 [ ] - Reports/", lines[0])
	assert.Equal(t, "   2 [ ]     B.docx", lines[1])
	assert.Equal(t, "   3 [ ]     notes  (not submittable)", lines[2])
	assert.Equal(t, "   4 [ ]   A.pdf", lines[3])
}

func TestShell_OpenByIDAndCollapse(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")
	sh.exec(ctx, "open F")
	out.Reset()

	sh.exec(ctx, "open F")
	assert.Equal(t, "   1 [ ] + Reports/\n   2 [ ]   A.pdf\n", out.String())
}

func TestShell_OpenFileIsAnError(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")
	out.Reset()

	sh.exec(ctx, "open 2")
	assert.Contains(t, out.String(), "error: A.pdf is a file")
}

func TestShell_SelectCascadesOverLoadedChildren(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")
	sh.exec(ctx, "open F")
	out.Reset()

	sh.exec(ctx, "sel 1")
	assert.Equal(t, "Selected Reports; 3 item(s) selected.\n", out.String())
	assert.Equal(t, []string{"B", "F", "N"}, sh.sel.IDs())

	out.Reset()
	sh.exec(ctx, "sel F")
	assert.Equal(t, "Deselected Reports; 0 item(s) selected.\n", out.String())
	assert.Empty(t, sh.sel.IDs())
}

func TestShell_AllAndNone(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")
	out.Reset()

	sh.exec(ctx, "all")
	assert.Equal(t, "2 item(s) selected.\n", out.String())

	out.Reset()
	sh.exec(ctx, "ls")
	assert.Contains(t, out.String(), "   1 [x] + Reports/")

	out.Reset()
	sh.exec(ctx, "none")
	assert.Equal(t, "Selection cleared.\n", out.String())
	assert.Zero(t, sh.sel.Len())
}

func TestShell_ResolveErrors(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.exec(ctx, "ls")

	tests := []struct {
		line string
		want string
	}{
		{"sel", "expected one entry number or id"},
		{"sel 9", "no entry 9 (the listing has 2)"},
		{"sel 0", "no entry 0"},
		{"open nope", `unknown entry "nope"`},
		{"frobnicate", `unknown command "frobnicate"`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out.Reset()
			sh.exec(ctx, tt.line)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestShell_FailedRootLoadIsRetriedByLs(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	failing := mapLister{}
	sh.store = tree.NewStore(failing, time.Second, sh.logger)
	t.Cleanup(sh.store.Close)
	sh.sel = selection.NewEngine(sh.store, sh.logger)

	assert.False(t, sh.exec(ctx, "ls"))
	assert.Contains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "itemNotFound")
	assert.False(t, sh.store.RootLoaded())

	failing[graph.RootID] = []graph.Item{{ID: "X", Name: "x.txt", DownloadURL: "https://dl/x"}}
	out.Reset()

	sh.exec(ctx, "ls")
	assert.Equal(t, "   1 [ ]   x.txt\n", out.String())
}

func TestShell_SubmitSuccessReportsOutcome(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	fs := &fakeSubmitter{sel: sh.sel}
	sh.submit = fs

	sh.exec(ctx, "ls")
	sh.exec(ctx, "sel 2")
	out.Reset()

	sh.exec(ctx, "submit")

	assert.Equal(t, 1, fs.calls)
	assert.Equal(t,
		"Submitted 1 of 1 selected item(s): 1 processed, 3 chunks.\n"+
			"  skipped scan.tiff: unsupported type\n"+
			"Recorded as hist-1.\n",
		out.String())
	assert.Zero(t, sh.sel.Len())
}

func TestShell_SubmitFailureKeepsSelection(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	sh.submit = &fakeSubmitter{
		sel: sh.sel,
		err: &httpapi.NetworkError{StatusCode: 503, Body: "busy", Err: httpapi.ErrServerError},
	}

	sh.exec(ctx, "ls")
	sh.exec(ctx, "sel 2")
	out.Reset()

	sh.exec(ctx, "submit")

	assert.Contains(t, out.String(), "HTTP 503: busy (selection kept)")
	assert.Equal(t, []string{"A"}, sh.sel.IDs())
}

func TestShell_SubmitUnavailableWithoutBackend(t *testing.T) {
	sh, out := newTestShell(t)
	sh.submitErr = config.ErrNoAPIScopes

	sh.exec(context.Background(), "submit")

	assert.Contains(t, out.String(), "submission unavailable: auth.api_scopes is not configured")
}

func TestShell_RunStopsOnQuitAndEOF(t *testing.T) {
	sh, out := newTestShell(t)

	err := sh.run(context.Background(), strings.NewReader("ls\nquit\nls\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "Reports/"))

	out.Reset()
	require.NoError(t, sh.run(context.Background(), strings.NewReader("help\n"), nil))
	assert.Contains(t, out.String(), "Commands:")
}

func TestShell_RunEndsOnSignOut(t *testing.T) {
	sh, out := newTestShell(t)

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	signedOut := make(chan string, 1)
	signedOut <- "/tokens/alice@contoso.com.json"

	err := sh.run(context.Background(), pr, signedOut)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Signed out (alice@contoso.com.json removed)")
}

func TestShell_RunReportsReadError(t *testing.T) {
	sh, _ := newTestShell(t)

	pr, pw := io.Pipe()
	pw.CloseWithError(errors.New("tty gone"))

	err := sh.run(context.Background(), pr, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty gone")
}
