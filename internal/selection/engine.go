// Package selection implements cascading multi-select over the loaded part
// of a tree. Selecting a node selects the node and every descendant that is
// currently loaded; descendants fetched later are not added retroactively.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrUnknownNode is returned when toggling an id the arena does not hold.
var ErrUnknownNode = errors.New("selection: unknown node")

// Arena is the read view of the tree the engine cascades over.
// tree.Store satisfies it.
type Arena interface {
	// Subtree returns id followed by its loaded descendants.
	Subtree(id string) ([]string, bool)
	// AllIDs returns every node reachable from the root sequence.
	AllIDs() []string
	// Revision changes whenever nodes are added to the arena.
	Revision() uint64
}

// lastToggle remembers which ids the most recent Toggle actually inserted,
// so that toggling the same id straight back restores the earlier set even
// when some descendants were already selected. It only applies while neither
// the selection nor the arena has changed since.
type lastToggle struct {
	id       string
	inserted []string
	version  uint64
	revision uint64
}

// Engine owns the selected id set.
type Engine struct {
	arena  Arena
	logger *slog.Logger

	mu       sync.Mutex
	selected map[string]struct{}
	version  uint64
	last     *lastToggle
}

// NewEngine creates an engine with an empty selection.
func NewEngine(arena Arena, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		arena:    arena,
		logger:   logger,
		selected: make(map[string]struct{}),
	}
}

// Toggle selects id and its loaded descendants if id is not selected, and
// deselects them otherwise. Two consecutive toggles of the same id with no
// other selection or arena change in between restore the original set
// exactly; after the arena changed, deselecting removes the whole loaded
// subtree.
func (e *Engine) Toggle(id string) error {
	revision := e.arena.Revision()

	ids, ok := e.arena.Subtree(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, selected := e.selected[id]; !selected {
		inserted := addAll(e.selected, ids)
		e.bumpLocked()
		e.last = &lastToggle{id: id, inserted: inserted, version: e.version, revision: revision}

		e.logger.Debug("selected subtree",
			slog.String("node_id", id),
			slog.Int("subtree_size", len(ids)),
			slog.Int("inserted", len(inserted)),
		)

		return nil
	}

	if e.last != nil && e.last.id == id && e.last.version == e.version && e.last.revision == revision {
		ids = e.last.inserted
	}

	removed := removeAll(e.selected, ids)
	e.bumpLocked()
	e.last = nil

	e.logger.Debug("deselected subtree",
		slog.String("node_id", id),
		slog.Int("removed", removed),
	)

	return nil
}

// SelectAll replaces the selection with every node currently in the arena.
func (e *Engine) SelectAll() {
	ids := e.arena.AllIDs()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.selected = make(map[string]struct{}, len(ids))
	addAll(e.selected, ids)
	e.bumpLocked()
	e.last = nil

	e.logger.Debug("selected all", slog.Int("count", len(ids)))
}

// DeselectAll empties the selection.
func (e *Engine) DeselectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selected = make(map[string]struct{})
	e.bumpLocked()
	e.last = nil
}

// Has reports whether id is selected.
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.selected[id]

	return ok
}

// Len returns the number of selected ids.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.selected)
}

// IDs returns the selected ids, sorted.
func (e *Engine) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (e *Engine) bumpLocked() {
	e.version++
}

// addAll inserts ids into set and returns those that were not already there.
func addAll(set map[string]struct{}, ids []string) []string {
	var inserted []string

	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}

		set[id] = struct{}{}
		inserted = append(inserted, id)
	}

	return inserted
}

// removeAll deletes ids from set and returns how many were present.
func removeAll(set map[string]struct{}, ids []string) int {
	removed := 0

	for _, id := range ids {
		if _, ok := set[id]; ok {
			delete(set, id)
			removed++
		}
	}

	return removed
}
