package tree

// Entry is a node together with its depth below the root sequence.
type Entry struct {
	Node  Node
	Depth int
}

// RootLoaded reports whether LoadRoot has succeeded at least once.
func (s *Store) RootLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rootLoaded
}

// Revision changes whenever nodes are added to or replaced in the arena.
// Expanding or collapsing a loaded folder does not change it.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revision
}

// Node returns a snapshot of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}

	return rec.node.clone(), true
}

// Parent returns the id of the node's parent, "" for root-level nodes.
func (s *Store) Parent(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return "", false
	}

	return rec.parent, true
}

// Contains reports whether id is in the arena.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.nodes[id]

	return ok
}

// Len returns the number of nodes in the arena.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nodes)
}

// Roots returns snapshots of the root sequence in API order.
func (s *Store) Roots() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Node, 0, len(s.roots))
	for _, id := range s.roots {
		out = append(out, s.nodes[id].node.clone())
	}

	return out
}

// Children returns snapshots of a folder's loaded children. ok is false when
// the node is unknown or its children have not been fetched yet.
func (s *Store) Children(id string) ([]Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.nodes[id]
	if !found || !rec.node.ChildrenLoaded {
		return nil, false
	}

	out := make([]Node, 0, len(rec.node.Children))
	for _, cid := range rec.node.Children {
		out = append(out, s.nodes[cid].node.clone())
	}

	return out, true
}

// Subtree returns id followed by every loaded descendant, pre-order.
// Descendants of folders that were never fetched are not included.
func (s *Store) Subtree(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}

	return s.collectLocked(nil, id), true
}

// AllIDs returns every node reachable from the root sequence, pre-order.
func (s *Store) AllIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.nodes))
	for _, id := range s.roots {
		ids = s.collectLocked(ids, id)
	}

	return ids
}

func (s *Store) collectLocked(acc []string, id string) []string {
	acc = append(acc, id)

	for _, cid := range s.nodes[id].node.Children {
		acc = s.collectLocked(acc, cid)
	}

	return acc
}

// Walk calls fn for every loaded node in pre-order with its depth. Walking
// stops early when fn returns false. fn receives snapshots and may call
// back into the store.
func (s *Store) Walk(fn func(e Entry) bool) {
	for _, e := range s.entries(false) {
		if !fn(e) {
			return
		}
	}
}

// Visible returns the nodes a tree view shows: the root sequence plus the
// loaded children of every expanded folder, pre-order.
func (s *Store) Visible() []Entry {
	return s.entries(true)
}

func (s *Store) entries(expandedOnly bool) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry

	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n := &s.nodes[id].node
		out = append(out, Entry{Node: n.clone(), Depth: depth})

		if expandedOnly && !n.Expanded {
			return
		}

		for _, cid := range n.Children {
			visit(cid, depth+1)
		}
	}

	for _, id := range s.roots {
		visit(id, 0)
	}

	return out
}
