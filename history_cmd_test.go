package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/onedrive-kb/internal/history"
)

func TestPrintHistoryTable(t *testing.T) {
	at := time.Date(2020, time.May, 4, 9, 15, 0, 0, time.Local)

	var buf bytes.Buffer
	printHistoryTable(&buf, []history.Submission{
		{ID: "s-2", SubmittedAt: at, Source: history.SourceUpload, Status: history.StatusFailed, SelectedCount: 2, SubmittedCount: 2},
		{ID: "s-1", SubmittedAt: at, Source: history.SourceOneDrive, Status: history.StatusSucceeded, SelectedCount: 3, SubmittedCount: 2, TotalChunks: 17},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "ID   WHEN          SOURCE    STATUS     DOCS  CHUNKS", lines[0])
	assert.Equal(t, "s-2  May  4  2020  upload    failed     2/2   0", lines[1])
	assert.Equal(t, "s-1  May  4  2020  onedrive  succeeded  2/3   17", lines[2])
}

func TestPrintSubmission(t *testing.T) {
	chunks := 5

	var buf bytes.Buffer
	printSubmission(&buf, &history.Submission{
		ID:             "s-1",
		SubmittedAt:    time.Date(2020, time.May, 4, 9, 15, 0, 0, time.Local),
		Source:         history.SourceOneDrive,
		Account:        "alice@contoso.com",
		RequesterName:  "Alice",
		RequesterEmail: "alice@contoso.com",
		SelectedCount:  3,
		SubmittedCount: 2,
		Status:         history.StatusSucceeded,
		Processed:      1,
		TotalChunks:    5,
		Items:          []history.Item{{ID: "A", Name: "a.pdf"}, {ID: "B", Name: "b.docx"}},
		Results: []history.Result{
			{Filename: "a.pdf", Status: "success", Chunks: &chunks},
			{Filename: "b.docx", Status: "failed", Reason: "encrypted"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Requester: Alice <alice@contoso.com>\n")
	assert.Contains(t, out, "Source:    onedrive\n")
	assert.Contains(t, out, "Documents: 2 of 3 selected, 1 processed, 5 chunks\n")
	assert.Contains(t, out, "    success   a.pdf (5 chunks)\n")
	assert.Contains(t, out, "    failed    b.docx: encrypted\n")
	assert.NotContains(t, out, "Error:")
}
