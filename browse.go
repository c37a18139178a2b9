package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/onedrive-kb/internal/authbroker"
	"github.com/tonimelisma/onedrive-kb/internal/identity"
	"github.com/tonimelisma/onedrive-kb/internal/ingest"
	"github.com/tonimelisma/onedrive-kb/internal/selection"
	"github.com/tonimelisma/onedrive-kb/internal/tree"
)

const shellPrompt = "onedrive-kb> "

const shellHelp = `Commands:
  ls            show the tree (expanded folders included)
  open <n|id>   expand or collapse a folder
  sel <n|id>    select or deselect an entry and its loaded contents
  all           select everything loaded
  none          clear the selection
  submit        send the selected documents to the knowledge base
  help          show this help
  quit          leave the shell
Entries are addressed by the number shown by ls or by their id.
`

var selectedMark = color.New(color.FgGreen, color.Bold).SprintFunc()

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse OneDrive interactively and submit a selection",
		Long: `Start an interactive shell over your OneDrive. Folders are fetched when
first opened; selecting a folder selects everything loaded beneath it.`,
		Args: cobra.NoArgs,
		RunE: runBrowse,
	}
}

// submitter is the part of ingest.Submitter the shell drives.
type submitter interface {
	Submit(ctx context.Context) (*ingest.Result, error)
}

// shell is the interactive browse loop. Commands run one at a time; a folder
// fetch blocks the prompt until it completes.
type shell struct {
	store *tree.Store
	sel   *selection.Engine
	// submit is nil when submission is unavailable; submitErr says why.
	submit    submitter
	submitErr error
	out       io.Writer
	prompt    string
	logger    *slog.Logger
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := commandContext(cmd, logger)

	a := newApp(resolvedCfg, logger)
	defer a.Close()

	warmUpTokens(ctx, a)

	store := tree.NewStore(a.graphClient(), resolvedCfg.RequestTimeout, logger)
	defer store.Close()

	sh := &shell{
		store:  store,
		sel:    selection.NewEngine(store, logger),
		out:    os.Stdout,
		logger: logger,
	}

	sh.submit, sh.submitErr = newShellSubmitter(ctx, a, sh.store, sh.sel)

	signedOut := make(chan string, 1)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	if err := identity.WatchSignOut(watchCtx, resolvedCfg.TokenDir, func(path string) {
		a.broker.Reset()

		select {
		case signedOut <- path:
		default:
		}
	}, logger); err != nil {
		logger.Warn("sign-out watch unavailable", slog.String("error", err.Error()))
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		sh.prompt = shellPrompt
		statusf("Type 'help' for commands.\n")
	}

	sh.exec(ctx, "ls")

	return sh.run(ctx, os.Stdin, signedOut)
}

// warmUpTokens acquires the token of every configured scope set up front so
// that any sign-in prompt appears before the first listing.
func warmUpTokens(ctx context.Context, a *app) {
	sets := []authbroker.ScopeSet{a.filesScopes()}
	if a.cfg.RequireBackend() == nil {
		sets = append(sets, a.apiScopes())
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, set := range sets {
		g.Go(func() error {
			if _, err := a.broker.Token(gctx, set); err != nil {
				return fmt.Errorf("%s scopes: %w", set.Name, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Warn("token warm-up failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "%s %s\n", errorLabel("Warning:"), describeError(err))
	}
}

// newShellSubmitter wires an ingest.Submitter over the shell's tree and
// selection. It returns the reason instead when no backend is configured.
func newShellSubmitter(
	ctx context.Context, a *app, store *tree.Store, sel *selection.Engine,
) (submitter, error) {
	kb, err := a.backendClient()
	if err != nil {
		return nil, err
	}

	rec, err := a.recorder(ctx)
	if err != nil {
		a.logger.Warn("submission history unavailable", slog.String("error", err.Error()))
	}

	return ingest.NewSubmitter(store, sel, kb, a.graphClient(), rec, ingest.Config{
		Requester: ingest.Requester{Name: a.cfg.RequesterName, Email: a.cfg.RequesterEmail},
		Account:   a.accountName(ctx),
	}, a.logger), nil
}

// run reads commands from in until quit, end of input, ctx cancellation or
// a sign-out. A sign-out ends the session: the broker has already dropped
// its tokens and nothing loaded so far should stay on screen.
func (sh *shell) run(ctx context.Context, in io.Reader, signedOut <-chan string) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}

		readErr <- sc.Err()
		close(lines)
	}()

	for {
		if sh.prompt != "" {
			fmt.Fprint(sh.out, sh.prompt)
		}

		select {
		case <-ctx.Done():
			return nil

		case path := <-signedOut:
			fmt.Fprintf(sh.out, "\nSigned out (%s removed). Run 'onedrive-kb login' to sign in again.\n",
				filepath.Base(path))

			return nil

		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading commands: %w", err)
				}

				return nil
			}

			if sh.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
// Command errors are printed, never returned: nothing a command does ends
// the session.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name, args := fields[0], fields[1:]

	var err error

	switch name {
	case "ls", "l":
		err = sh.list(ctx)
	case "open", "o":
		err = sh.open(ctx, args)
	case "sel", "s":
		err = sh.toggle(args)
	case "all":
		sh.sel.SelectAll()
		fmt.Fprintf(sh.out, "%d item(s) selected.\n", sh.sel.Len())
	case "none":
		sh.sel.DeselectAll()
		fmt.Fprintln(sh.out, "Selection cleared.")
	case "submit":
		err = sh.submitSelection(ctx)
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
	case "quit", "exit", "q":
		return true
	default:
		err = fmt.Errorf("unknown command %q (type 'help')", name)
	}

	if err != nil {
		sh.logger.Debug("shell command failed", slog.String("command", name), slog.String("error", err.Error()))
		fmt.Fprintf(sh.out, "%s %s\n", errorLabel("error:"), describeError(err))
	}

	return false
}

// list prints the visible tree, loading the root first if it is not loaded
// yet (or failed to load earlier).
func (sh *shell) list(ctx context.Context) error {
	if !sh.store.RootLoaded() {
		if err := sh.store.LoadRoot(ctx); err != nil {
			return err
		}
	}

	entries := sh.store.Visible()
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "(drive is empty)")
		return nil
	}

	for i, e := range entries {
		fmt.Fprintf(sh.out, "%4d %s %s%s\n", i+1, sh.mark(e.Node.ID), strings.Repeat("  ", e.Depth), label(&e.Node))
	}

	return nil
}

func (sh *shell) mark(id string) string {
	if sh.sel.Has(id) {
		return selectedMark("[x]")
	}

	return "[ ]"
}

// label renders a node's name with its folder state.
func label(n *tree.Node) string {
	if !n.IsFolder() {
		if n.DownloadURL == "" {
			return "  " + n.Name + "  (not submittable)"
		}

		return "  " + n.Name
	}

	sign := "+"
	if n.Expanded {
		sign = "-"
	}

	s := sign + " " + n.Name + "/"

	switch {
	case n.Loading:
		s += "  (loading)"
	case n.ChildrenLoaded && len(n.Children) == 0:
		s += "  (empty)"
	case !n.ChildrenLoaded && n.ChildCount >= 0:
		s += fmt.Sprintf("  (%d)", n.ChildCount)
	}

	return s
}

func (sh *shell) open(ctx context.Context, args []string) error {
	id, err := sh.resolve(args)
	if err != nil {
		return err
	}

	n, _ := sh.store.Node(id)
	if !n.IsFolder() {
		return fmt.Errorf("%s is a file", n.Name)
	}

	if err := sh.store.ToggleExpand(ctx, id); err != nil {
		return err
	}

	return sh.list(ctx)
}

func (sh *shell) toggle(args []string) error {
	id, err := sh.resolve(args)
	if err != nil {
		return err
	}

	if err := sh.sel.Toggle(id); err != nil {
		return err
	}

	n, _ := sh.store.Node(id)

	verb := "Deselected"
	if sh.sel.Has(id) {
		verb = "Selected"
	}

	fmt.Fprintf(sh.out, "%s %s; %d item(s) selected.\n", verb, n.Name, sh.sel.Len())

	return nil
}

func (sh *shell) submitSelection(ctx context.Context) error {
	if sh.submit == nil {
		return fmt.Errorf("submission unavailable: %w", sh.submitErr)
	}

	res, err := sh.submit.Submit(ctx)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			return err
		}

		return fmt.Errorf("%w (selection kept)", err)
	}

	fmt.Fprintf(sh.out, "Submitted %d of %d selected item(s): %d processed, %d chunks.\n",
		len(res.Submitted), res.SelectedCount, res.Response.Processed, res.Response.TotalChunks)

	for _, f := range res.Failures() {
		line := fmt.Sprintf("  %s %s", f.Status, f.Filename)
		if f.Reason != "" {
			line += ": " + f.Reason
		}

		fmt.Fprintln(sh.out, line)
	}

	if res.HistoryID != "" {
		fmt.Fprintf(sh.out, "Recorded as %s.\n", res.HistoryID)
	}

	return nil
}

// resolve maps a command argument to a node id: an entry number as ls
// numbers the current tree, or an id present in the tree.
func (sh *shell) resolve(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected one entry number or id")
	}

	arg := args[0]

	if n, err := strconv.Atoi(arg); err == nil {
		entries := sh.store.Visible()
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("no entry %d (the listing has %d)", n, len(entries))
		}

		return entries[n-1].Node.ID, nil
	}

	if sh.store.Contains(arg) {
		return arg, nil
	}

	return "", fmt.Errorf("unknown entry %q", arg)
}
