package btree

import "btreeidx/pkg/btreeerr"

// Reader is a thin, read-only facade onto a frozen Tree: it exposes the root
// node and, transitively, the rest of the node structure, without ever
// mutating it. Constructing a Reader requires the tree's storage to already
// report read-only; this is the only sanctioned way external code touches
// nodes directly.
//
// A Reader does not serialize access itself — safety for concurrent callers
// comes entirely from the frozen-tree invariant the constructor enforces.
type Reader[K any, V any] struct {
	tree *Tree[K, V]
}

// NewReader builds a Reader over t, failing if t's storage is not read-only.
func NewReader[K any, V any](t *Tree[K, V]) (*Reader[K, V], error) {
	if !t.storage.IsReadOnly() {
		return nil, btreeerr.NewInvalidMode("NewReader", "tree storage must be read-only")
	}
	return &Reader[K, V]{tree: t}, nil
}

// RootNode returns the tree's root node, or ok=false if the tree is empty.
func (r *Reader[K, V]) RootNode() (node *Node[K, V], ok bool) {
	if r.tree.rootPage == noChild {
		return nil, false
	}
	return r.tree.node(r.tree.rootPage), true
}

// TryGetValue looks up key without any locking beyond what the frozen tree
// already guarantees; safe to call from multiple goroutines concurrently.
func (r *Reader[K, V]) TryGetValue(key K, cancel <-chan struct{}) (V, bool, error) {
	return r.tree.TryGetValue(key, cancel)
}

// ContainsKey is TryGetValue discarding the value.
func (r *Reader[K, V]) ContainsKey(key K, cancel <-chan struct{}) (bool, error) {
	return r.tree.ContainsKey(key, cancel)
}

// Count returns the number of keys in the frozen tree.
func (r *Reader[K, V]) Count() int64 {
	return r.tree.Header().Count
}
