package main

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-kb/internal/graph"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List a folder (the drive root by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

// lsJSONItem is the JSON schema for `ls --json`. Download URLs are omitted.
type lsJSONItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	ChildCount *int   `json:"child_count,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
}

func runLs(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	parentID := graph.RootID
	if len(args) == 1 {
		parentID = args[0]
	}

	items, err := a.graphClient().ListChildren(ctx, parentID)
	if err != nil {
		return err
	}

	if flagJSON {
		return printLsJSON(os.Stdout, items)
	}

	printLsTable(os.Stdout, items)

	return nil
}

func printLsJSON(w io.Writer, items []graph.Item) error {
	out := make([]lsJSONItem, 0, len(items))

	for i := range items {
		it := lsJSONItem{ID: items[i].ID, Name: items[i].Name, Kind: "file", MimeType: items[i].MimeType}

		if items[i].IsFolder {
			it.Kind = "folder"

			if items[i].ChildCount != graph.ChildCountUnknown {
				count := items[i].ChildCount
				it.ChildCount = &count
			}
		}

		out = append(out, it)
	}

	return writeJSON(w, out)
}

func printLsTable(w io.Writer, items []graph.Item) {
	rows := make([][]string, 0, len(items))

	for i := range items {
		name := items[i].Name
		detail := items[i].MimeType

		if items[i].IsFolder {
			name += "/"
			detail = ""

			if items[i].ChildCount != graph.ChildCountUnknown {
				detail = strconv.Itoa(items[i].ChildCount) + " items"
			}
		}

		rows = append(rows, []string{name, detail, items[i].ID})
	}

	printTable(w, []string{"NAME", "DETAIL", "ID"}, rows)
}
