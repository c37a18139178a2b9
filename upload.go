package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-kb/internal/ingest"
	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload local documents to the knowledge base",
		Long: `Upload local documents to the knowledge base.

Accepted types are PDF, DOC, DOCX, TXT, PPT and PPTX, up to 80 MB per file.
Other files are skipped and listed on stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().String("users", "", "comma-separated emails of additional users who may access the documents")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	usersFlag, _ := cmd.Flags().GetString("users")

	users, err := ingest.ParseUsers(usersFlag)
	if err != nil {
		return err
	}

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	kb, err := a.backendClient()
	if err != nil {
		return err
	}

	rec, err := a.recorder(ctx)
	if err != nil {
		logger.Warn("submission history unavailable", slog.String("error", err.Error()))
	}

	res, err := ingest.NewUploader(kb, rec, a.accountName(ctx), logger).Upload(ctx, args, users)
	if res != nil {
		printRejected(os.Stderr, res.Rejected)
	}

	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(os.Stdout, newUploadOutput(res))
	}

	printUploadResult(os.Stdout, res)

	return nil
}

type uploadRejectedJSON struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type uploadOutput struct {
	HistoryID   string               `json:"history_id,omitempty"`
	Uploaded    []string             `json:"uploaded"`
	Rejected    []uploadRejectedJSON `json:"rejected"`
	Processed   int                  `json:"processed"`
	TotalChunks int                  `json:"total_chunks"`
	Results     []kbapi.ItemResult   `json:"results"`
}

func newUploadOutput(res *ingest.UploadResult) uploadOutput {
	out := uploadOutput{
		HistoryID: res.HistoryID,
		Uploaded:  res.Uploaded,
		Rejected:  make([]uploadRejectedJSON, 0, len(res.Rejected)),
		Results:   []kbapi.ItemResult{},
	}

	for _, r := range res.Rejected {
		out.Rejected = append(out.Rejected, uploadRejectedJSON{Path: r.Path, Reason: r.Reason})
	}

	if res.Response != nil {
		out.Processed = res.Response.Processed
		out.TotalChunks = res.Response.TotalChunks

		if res.Response.Results != nil {
			out.Results = res.Response.Results
		}
	}

	return out
}

func printRejected(w io.Writer, rejected []ingest.Rejected) {
	for _, r := range rejected {
		fmt.Fprintf(w, "Skipped %s: %s\n", r.Path, r.Reason)
	}
}

func printUploadResult(w io.Writer, res *ingest.UploadResult) {
	fmt.Fprintf(w, "Uploaded %d file(s): %d processed, %d chunks.\n",
		len(res.Uploaded), res.Response.Processed, res.Response.TotalChunks)

	for _, r := range res.Response.Results {
		line := fmt.Sprintf("  %-9s %s", r.Status, r.Filename)

		switch {
		case r.Chunks != nil && r.SizeMB != nil:
			line += fmt.Sprintf(" (%d chunks, %.2f MB)", *r.Chunks, *r.SizeMB)
		case r.Chunks != nil:
			line += fmt.Sprintf(" (%d chunks)", *r.Chunks)
		}

		if r.Reason != "" {
			line += ": " + r.Reason
		}

		fmt.Fprintln(w, line)
	}

	if res.HistoryID != "" {
		fmt.Fprintf(w, "Recorded as %s.\n", res.HistoryID)
	}
}
