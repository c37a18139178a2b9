package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonimelisma/onedrive-kb/internal/graph"
)

// DefaultFetchTimeout bounds a single children fetch when the caller passes
// a zero timeout to NewStore.
const DefaultFetchTimeout = 30 * time.Second

// Errors returned by Store.
var (
	ErrNodeNotFound = errors.New("tree: node not found")
	ErrClosed       = errors.New("tree: store closed")
	// ErrStaleResult is returned when a fetch completes after LoadRoot has
	// replaced the arena it was started against; its result is discarded.
	ErrStaleResult = errors.New("tree: result discarded, tree was reloaded")
)

// Lister fetches the children of a remote folder. graph.Client satisfies it.
type Lister interface {
	ListChildren(ctx context.Context, parentID string) ([]graph.Item, error)
}

// record is one arena slot.
type record struct {
	node   Node
	parent string // "" for root-level nodes
}

// Store owns the node arena. All mutation happens under mu, and mu is never
// held across a fetch: a fetch's result is applied by node id once it
// returns, so fetches for different nodes may complete in any order.
type Store struct {
	lister  Lister
	timeout time.Duration
	logger  *slog.Logger

	// base is canceled by Close so in-flight fetches stop early.
	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	nodes      map[string]*record
	roots      []string
	rootLoaded bool
	generation uint64
	// revision counts structural changes: root reloads and loaded children.
	revision uint64
	closed   bool
}

// NewStore creates an empty store. fetchTimeout bounds each listing call;
// zero selects DefaultFetchTimeout.
func NewStore(lister Lister, fetchTimeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	base, cancel := context.WithCancel(context.Background())

	return &Store{
		lister:  lister,
		timeout: fetchTimeout,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		nodes:   make(map[string]*record),
	}
}

// Close tears the store down. Fetches still in flight are canceled and any
// result that arrives afterwards is discarded. Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
}

// fetch lists parentID under the per-request timeout, canceled early if the
// store is closed.
func (s *Store) fetch(ctx context.Context, parentID string) ([]graph.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	return s.lister.ListChildren(ctx, parentID)
}

// LoadRoot fetches the top-level entries and, on success, replaces the root
// sequence. The arena is rebuilt from scratch, so results of child fetches
// started before the reload are discarded with ErrStaleResult.
func (s *Store) LoadRoot(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	s.logger.Info("loading root entries")

	items, err := s.fetch(ctx, graph.RootID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("discarding root listing, store closed")
		return ErrClosed
	}

	if err != nil {
		return fmt.Errorf("tree: loading root: %w", err)
	}

	s.generation++
	s.nodes = make(map[string]*record, len(items))
	s.roots = s.insertLocked("", items)
	s.rootLoaded = true
	s.revision++

	s.logger.Info("root entries loaded", slog.Int("count", len(s.roots)))

	return nil
}

// ToggleExpand flips the expansion of a folder; files are a no-op. The first
// expansion of an unloaded folder fetches its children and blocks until the
// fetch completes. A toggle that arrives while that fetch is pending only
// flips Expanded and returns immediately, so a folder never has two fetches
// in flight. A failed fetch leaves the folder collapsed and unloaded so the
// next toggle retries it.
func (s *Store) ToggleExpand(ctx context.Context, id string) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	rec, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	n := &rec.node
	if !n.IsFolder() {
		s.mu.Unlock()
		return nil
	}

	n.Expanded = !n.Expanded

	if !n.Expanded || n.ChildrenLoaded || n.Loading {
		s.logger.Debug("toggled folder without fetch",
			slog.String("node_id", id),
			slog.Bool("expanded", n.Expanded),
			slog.String("state", n.State().String()),
		)
		s.mu.Unlock()

		return nil
	}

	n.Loading = true
	gen := s.generation
	s.mu.Unlock()

	s.logger.Info("fetching folder children", slog.String("node_id", id))

	items, err := s.fetch(ctx, id)

	return s.applyChildren(id, gen, items, err)
}

// applyChildren records the outcome of a children fetch for id.
func (s *Store) applyChildren(id string, gen uint64, items []graph.Item, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("discarding children, store closed", slog.String("node_id", id))
		return ErrClosed
	}

	rec, ok := s.nodes[id]
	if gen != s.generation || !ok {
		s.logger.Debug("discarding children from a previous root load", slog.String("node_id", id))
		return ErrStaleResult
	}

	n := &rec.node
	n.Loading = false

	if fetchErr != nil {
		n.Expanded = false

		s.logger.Warn("folder fetch failed",
			slog.String("node_id", id),
			slog.String("error", fetchErr.Error()),
		)

		return fmt.Errorf("tree: expanding %s: %w", id, fetchErr)
	}

	n.Children = s.insertLocked(id, items)
	n.ChildrenLoaded = true
	s.revision++

	s.logger.Info("folder children loaded",
		slog.String("node_id", id),
		slog.Int("count", len(n.Children)),
	)

	return nil
}

// insertLocked adds items under parent and returns their ids in order.
// An id already present anywhere in the arena is skipped so the arena never
// holds two nodes with the same id. The returned slice is non-nil.
func (s *Store) insertLocked(parent string, items []graph.Item) []string {
	ids := make([]string, 0, len(items))

	for i := range items {
		if _, dup := s.nodes[items[i].ID]; dup {
			s.logger.Warn("skipping entry already present in tree",
				slog.String("node_id", items[i].ID),
				slog.String("parent_id", parent),
			)

			continue
		}

		s.nodes[items[i].ID] = &record{node: nodeFromItem(&items[i]), parent: parent}
		ids = append(ids, items[i].ID)
	}

	return ids
}
