package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-kb/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [submission-id]",
		Short: "Show past submissions",
		Long: `Show recent ingestion submissions, newest first. With a submission id,
show that submission's documents and per-document results.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", history.DefaultListLimit, "maximum number of submissions to list")

	return cmd
}

var errHistoryDisabled = errors.New("submission history is disabled (history.enabled = false)")

func runHistory(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	if !resolvedCfg.HistoryEnabled {
		return errHistoryDisabled
	}

	st, err := history.Open(ctx, resolvedCfg.HistoryDBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 1 {
		sub, getErr := st.Get(ctx, args[0])
		if getErr != nil {
			return getErr
		}

		if flagJSON {
			return writeJSON(os.Stdout, sub)
		}

		printSubmission(os.Stdout, sub)

		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")

	subs, err := st.List(ctx, limit)
	if err != nil {
		return err
	}

	if flagJSON {
		if subs == nil {
			subs = []history.Submission{}
		}

		return writeJSON(os.Stdout, subs)
	}

	if len(subs) == 0 {
		statusf("No submissions yet.\n")
		return nil
	}

	printHistoryTable(os.Stdout, subs)

	return nil
}

func printHistoryTable(w io.Writer, subs []history.Submission) {
	rows := make([][]string, 0, len(subs))

	for i := range subs {
		rows = append(rows, []string{
			subs[i].ID,
			formatTime(subs[i].SubmittedAt),
			string(subs[i].Source),
			string(subs[i].Status),
			fmt.Sprintf("%d/%d", subs[i].SubmittedCount, subs[i].SelectedCount),
			strconv.Itoa(subs[i].TotalChunks),
		})
	}

	printTable(w, []string{"ID", "WHEN", "SOURCE", "STATUS", "DOCS", "CHUNKS"}, rows)
}

func printSubmission(w io.Writer, sub *history.Submission) {
	fmt.Fprintf(w, "Submission %s\n", sub.ID)
	fmt.Fprintf(w, "  When:      %s\n", formatTime(sub.SubmittedAt))
	fmt.Fprintf(w, "  Source:    %s\n", sub.Source)
	fmt.Fprintf(w, "  Account:   %s\n", sub.Account)
	fmt.Fprintf(w, "  Requester: %s <%s>\n", sub.RequesterName, sub.RequesterEmail)
	fmt.Fprintf(w, "  Status:    %s\n", sub.Status)

	if sub.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", sub.Error)
	}

	fmt.Fprintf(w, "  Documents: %d of %d selected, %d processed, %d chunks\n",
		sub.SubmittedCount, sub.SelectedCount, sub.Processed, sub.TotalChunks)

	for _, it := range sub.Items {
		fmt.Fprintf(w, "    %s\n", it.Name)
	}

	if len(sub.Results) == 0 {
		return
	}

	fmt.Fprintln(w, "  Results:")

	for _, r := range sub.Results {
		line := fmt.Sprintf("    %-9s %s", r.Status, r.Filename)

		if r.Chunks != nil {
			line += fmt.Sprintf(" (%d chunks)", *r.Chunks)
		}

		if r.Reason != "" {
			line += ": " + r.Reason
		}

		fmt.Fprintln(w, line)
	}
}
