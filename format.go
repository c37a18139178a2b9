package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tonimelisma/onedrive-kb/internal/authbroker"
	"github.com/tonimelisma/onedrive-kb/internal/httpapi"
	"github.com/tonimelisma/onedrive-kb/internal/identity"
)

// statusf prints a status message to stderr unless --quiet is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// formatTime returns a compact local timestamp for display.
func formatTime(t time.Time) string {
	t = t.Local()

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// describeError renders err for the terminal, adding the action that clears
// it where there is one.
func describeError(err error) string {
	switch {
	case errors.Is(err, authbroker.ErrNoAccount),
		errors.Is(err, authbroker.ErrInteractionRequired),
		errors.Is(err, authbroker.ErrSessionReset):
		return fmt.Sprintf("%v\nRun 'onedrive-kb login' to sign in.", err)
	case errors.Is(err, identity.ErrUnknownAccount):
		return fmt.Sprintf("%v\nRun 'onedrive-kb whoami' to list signed-in accounts.", err)
	case errors.Is(err, httpapi.ErrUnauthorized):
		return fmt.Sprintf("%v\nThe session may have expired. Run 'onedrive-kb login' to sign in again.", err)
	default:
		return err.Error()
	}
}
