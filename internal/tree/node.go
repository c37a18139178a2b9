// Package tree holds the lazily materialized remote directory tree. Nodes
// live in an arena indexed by id; folders fetch their children on first
// expansion and keep them for the lifetime of the store.
package tree

import "github.com/tonimelisma/onedrive-kb/internal/graph"

// Kind distinguishes files from folders.
type Kind int

// Node kinds.
const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}

	return "file"
}

// Node is a snapshot of one remote entry. Children holds child ids in API
// order and is meaningful only once ChildrenLoaded is true; an unloaded
// folder and a loaded empty folder are different states.
type Node struct {
	ID          string
	Name        string
	Kind        Kind
	ChildCount  int    // folder hint from the API, not authoritative
	MimeType    string // files only
	DownloadURL graph.DownloadURL

	Children       []string
	ChildrenLoaded bool
	Expanded       bool
	Loading        bool
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// State is the per-folder load state.
type State int

// Folder load states. Loaded is terminal.
const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// State returns the load state derived from Loading and ChildrenLoaded.
func (n *Node) State() State {
	switch {
	case n.ChildrenLoaded:
		return StateLoaded
	case n.Loading:
		return StateLoading
	default:
		return StateUnloaded
	}
}

func nodeFromItem(item *graph.Item) Node {
	n := Node{
		ID:          item.ID,
		Name:        item.Name,
		Kind:        KindFile,
		ChildCount:  item.ChildCount,
		MimeType:    item.MimeType,
		DownloadURL: item.DownloadURL,
	}

	if item.IsFolder {
		n.Kind = KindFolder
	}

	return n
}

// clone returns a copy that shares no slices with the arena.
func (n *Node) clone() Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]string(nil), n.Children...)
	}

	return c
}
