package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-kb/internal/kbapi"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the knowledge base a question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().Int("top-k", 0, "number of passages to retrieve (default from config)")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	kb, err := a.backendClient()
	if err != nil {
		return err
	}

	topK := resolvedCfg.TopK
	if cmd.Flags().Changed("top-k") {
		topK, _ = cmd.Flags().GetInt("top-k")
		if topK < 1 {
			return fmt.Errorf("--top-k must be at least 1, got %d", topK)
		}
	}

	question := strings.Join(args, " ")
	logger.Debug("asking backend", slog.Int("top_k", topK))

	resp, err := kb.Query(ctx, kbapi.QueryRequest{
		Query:    question,
		TopK:     topK,
		TenantID: resolvedCfg.TenantID,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(os.Stdout, resp)
	}

	printAnswer(os.Stdout, resp)

	return nil
}

func printAnswer(w io.Writer, resp *kbapi.QueryResponse) {
	fmt.Fprintln(w, strings.TrimSpace(resp.Answer))

	if len(resp.Citations) == 0 {
		return
	}

	fmt.Fprintln(w, "\nSources:")

	for i, c := range resp.Citations {
		fmt.Fprintf(w, "  [%d] %s (score %.2f", i+1, c.DocID, c.Score)

		if c.PageRange != nil {
			if c.PageRange[0] == c.PageRange[1] {
				fmt.Fprintf(w, ", p. %d", c.PageRange[0])
			} else {
				fmt.Fprintf(w, ", pp. %d-%d", c.PageRange[0], c.PageRange[1])
			}
		}

		fmt.Fprintln(w, ")")

		if snippet := strings.TrimSpace(c.TextSnippet); snippet != "" {
			fmt.Fprintf(w, "      %s\n", snippet)
		}

		if c.OneDriveURL != "" {
			fmt.Fprintf(w, "      %s\n", c.OneDriveURL)
		}
	}

	statusf("\n(%.0f ms)\n", resp.LatencyMS)
}
