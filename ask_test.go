package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
)

func TestPrintAnswer(t *testing.T) {
	oldQuiet := flagQuiet
	flagQuiet = true

	t.Cleanup(func() { flagQuiet = oldQuiet })

	var buf bytes.Buffer

	printAnswer(&buf, &kbapi.QueryResponse{
		Answer: " Revenue grew 12%.\n",
		Citations: []kbapi.Citation{
			{DocID: "q3.pdf", TextSnippet: "grew 12% year over year", Score: 0.91, PageRange: &[2]int{4, 5}, OneDriveURL: "https://od/q3"},
			{DocID: "memo.docx", Score: 0.5, PageRange: &[2]int{2, 2}},
			{DocID: "notes.txt", Score: 0.25},
		},
		LatencyMS: 840,
	})

	assert.Equal(t,
		"Revenue grew 12%.\n"+
			"\nSources:\n"+
			"  [1] q3.pdf (score 0.91, pp. 4-5)\n"+
			"      grew 12% year over year\n"+
			"      https://od/q3\n"+
			"  [2] memo.docx (score 0.50, p. 2)\n"+
			"  [3] notes.txt (score 0.25)\n",
		buf.String())
}

func TestPrintAnswer_NoCitations(t *testing.T) {
	var buf bytes.Buffer

	printAnswer(&buf, &kbapi.QueryResponse{Answer: "I don't know."})
	assert.Equal(t, "I don't know.\n", buf.String())
}
