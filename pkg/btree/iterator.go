package btree

import "btreeidx/pkg/btreeerr"

// Iterator performs a depth-first in-order (or reverse in-order) traversal
// of a Tree. While an Iterator is live, Insert and Remove on the same tree
// refuse with an invalid-mode error; call Close (or exhaust Next) to release
// the guard.
type Iterator[K any, V any] struct {
	tree      *Tree[K, V]
	ascending bool
	stack     []iterFrame[K, V]
	closed    bool
}

type iterFrame[K any, V any] struct {
	page        int64
	idx         int64
	count       int64
	leaf        bool
	childPushed bool
}

// Traverse locks the tree against mutation for the iterator's lifetime and
// returns an Iterator walking keys in ascending order if ascending is true,
// descending otherwise.
func (t *Tree[K, V]) Traverse(ascending bool) (*Iterator[K, V], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.traversing {
		return nil, btreeerr.NewInvalidMode("Traverse", "a traversal is already in progress")
	}
	it := &Iterator[K, V]{tree: t, ascending: ascending}
	if t.rootPage != noChild {
		if err := it.descendFar(t.rootPage); err != nil {
			return nil, err
		}
	}
	t.traversing = true
	return it, nil
}

func (it *Iterator[K, V]) descendFar(page int64) error {
	for {
		n := it.tree.node(page)
		leaf, err := n.IsLeaf()
		if err != nil {
			return err
		}
		count, err := n.Count()
		if err != nil {
			return err
		}
		idx := int64(0)
		if !it.ascending {
			idx = count - 1
		}
		// childPushed starts true: descendFar itself already followed the
		// near child below this frame (or there is none, if leaf), so Next
		// must not re-descend it.
		it.stack = append(it.stack, iterFrame[K, V]{page: page, idx: idx, count: count, leaf: leaf, childPushed: true})
		if leaf {
			return nil
		}
		childIdx := int64(0)
		if !it.ascending {
			childIdx = count
		}
		childPage, err := n.childRaw(childIdx)
		if err != nil {
			return err
		}
		if childPage == noChild {
			return it.tree.corruption(page, "child", "missing child during traversal descent")
		}
		page = childPage
	}
}

// Next returns the next (key, value) pair, or ok=false once the traversal is
// exhausted (at which point the tree's mutation guard is released
// automatically; Close is only needed to abandon a traversal early).
func (it *Iterator[K, V]) Next() (K, V, bool, error) {
	var zk K
	var zv V
	for {
		if len(it.stack) == 0 {
			it.release()
			return zk, zv, false, nil
		}
		f := &it.stack[len(it.stack)-1]
		if !f.leaf && !f.childPushed {
			n := it.tree.node(f.page)
			childIdx := f.idx
			if !it.ascending {
				childIdx = f.idx + 1
			}
			childPage, err := n.childRaw(childIdx)
			if err != nil {
				return zk, zv, false, err
			}
			f.childPushed = true
			if childPage != noChild {
				if err := it.descendFar(childPage); err != nil {
					return zk, zv, false, err
				}
			}
			continue
		}

		if f.idx < 0 || f.idx >= f.count {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		n := it.tree.node(f.page)
		k, err := n.GetKey(f.idx)
		if err != nil {
			return zk, zv, false, err
		}
		v, err := n.GetValue(f.idx)
		if err != nil {
			return zk, zv, false, err
		}
		if it.ascending {
			f.idx++
		} else {
			f.idx--
		}
		f.childPushed = false
		return k, v, true, nil
	}
}

// Close abandons the traversal early, releasing the tree's mutation guard.
// Safe to call after the traversal has already been exhausted.
func (it *Iterator[K, V]) Close() {
	it.release()
}

func (it *Iterator[K, V]) release() {
	if it.closed {
		return
	}
	it.tree.mu.Lock()
	it.tree.traversing = false
	it.tree.mu.Unlock()
	it.closed = true
}
