package btree

import (
	"encoding/binary"
	"fmt"

	"btreeidx/pkg/btreeerr"
)

const (
	headerSize    = 17 // count(8) + is_leaf(1) + first_child(8)
	isLeafByte    = 0xFF
	isInternalByte = 0x00
	noChild       = int64(-1)
)

// Node is a lightweight handle onto one page of a Tree: {tree, page index}.
// All reads and writes go through the tree's page storage; a Node carries no
// state of its own beyond its cached header fields.
type Node[K any, V any] struct {
	tree *Tree[K, V]
	page int64

	countCached int64
	countValid  bool
	leafCached  bool
	leafValid   bool
}

// Page returns the underlying page index this node is stored in.
func (n *Node[K, V]) Page() int64 { return n.page }

// Count returns the number of key/value pairs stored in this node, reading
// and caching the header field on first access.
func (n *Node[K, V]) Count() (int64, error) {
	if n.countValid {
		return n.countCached, nil
	}
	buf := make([]byte, 8)
	if err := n.tree.storage.ReadFrom(n.page, 0, buf, 0, 8); err != nil {
		return 0, err
	}
	c := int64(binary.LittleEndian.Uint64(buf))
	if c < 0 || c > n.tree.maxPairCount {
		return 0, n.tree.corruption(n.page, "key_value_pair_count", fmt.Sprintf("count %d outside [0,%d]", c, n.tree.maxPairCount))
	}
	n.countCached = c
	n.countValid = true
	return c, nil
}

// SetCount updates the element count in the header, write-through to both
// the page and the in-memory cache.
func (n *Node[K, V]) SetCount(count int64) error {
	if count < 0 || count > n.tree.maxPairCount {
		return btreeerr.NewInvalidArgument("count", fmt.Sprintf("%d outside [0,%d]", count, n.tree.maxPairCount))
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(count))
	if err := n.tree.storage.WriteTo(n.page, 0, buf, 0, 8); err != nil {
		return err
	}
	n.countCached = count
	n.countValid = true
	return nil
}

// IsLeaf reports whether this node is a leaf, reading and caching the header
// byte on first access.
func (n *Node[K, V]) IsLeaf() (bool, error) {
	if n.leafValid {
		return n.leafCached, nil
	}
	buf := make([]byte, 1)
	if err := n.tree.storage.ReadFrom(n.page, 8, buf, 0, 1); err != nil {
		return false, err
	}
	switch buf[0] {
	case isInternalByte:
		n.leafCached = false
	case isLeafByte:
		n.leafCached = true
	default:
		return false, n.tree.corruption(n.page, "is_leaf", fmt.Sprintf("byte 0x%02x is neither 0x00 nor 0xFF", buf[0]))
	}
	n.leafValid = true
	return n.leafCached, nil
}

// SetIsLeaf flips the leaf bit, write-through to both page and cache.
func (n *Node[K, V]) SetIsLeaf(leaf bool) error {
	b := byte(isInternalByte)
	if leaf {
		b = isLeafByte
	}
	if err := n.tree.storage.WriteTo(n.page, 8, []byte{b}, 0, 1); err != nil {
		return err
	}
	n.leafCached = leaf
	n.leafValid = true
	return nil
}

func (n *Node[K, V]) childOffset(i int64) int {
	if i == 0 {
		return 9
	}
	return n.tree.rightChildOffset(i - 1)
}

// childRaw reads child pointer i without resolving or validating it; -1
// means "no child".
func (n *Node[K, V]) childRaw(i int64) (int64, error) {
	buf := make([]byte, 8)
	if err := n.tree.storage.ReadFrom(n.page, n.childOffset(i), buf, 0, 8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

// SetChild writes child pointer i directly; childPage may be noChild.
func (n *Node[K, V]) SetChild(i int64, childPage int64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(childPage))
	return n.tree.storage.WriteTo(n.page, n.childOffset(i), buf, 0, 8)
}

// GetChild resolves child pointer i to a Node handle, or nil if the stored
// pointer is "no child". Raises corruption if the pointer targets a page
// that is not actually allocated.
func (n *Node[K, V]) GetChild(i int64) (*Node[K, V], error) {
	leaf, err := n.IsLeaf()
	if err != nil {
		return nil, err
	}
	if leaf {
		return nil, btreeerr.NewInvalidArgument("i", "leaf nodes have no children")
	}
	count, err := n.Count()
	if err != nil {
		return nil, err
	}
	if i < 0 || i > count {
		return nil, btreeerr.NewInvalidArgument("i", fmt.Sprintf("child index %d outside [0,%d]", i, count))
	}
	page, err := n.childRaw(i)
	if err != nil {
		return nil, err
	}
	if page == noChild {
		return nil, nil
	}
	if !n.tree.storage.IsPageAllocated(page) {
		return nil, n.tree.corruption(n.page, "child", fmt.Sprintf("child %d at index %d is not an allocated page", page, i))
	}
	return n.tree.node(page), nil
}

// GetKey reads element i's key.
func (n *Node[K, V]) GetKey(i int64) (K, error) {
	var zero K
	buf := make([]byte, n.tree.keySize)
	if err := n.tree.storage.ReadFrom(n.page, n.tree.keyOffset(i), buf, 0, n.tree.keySize); err != nil {
		return zero, err
	}
	return n.tree.keySer.Deserialize(buf), nil
}

// SetKey writes element i's key.
func (n *Node[K, V]) SetKey(i int64, key K) error {
	buf := make([]byte, n.tree.keySize)
	n.tree.keySer.Serialize(key, buf)
	return n.tree.storage.WriteTo(n.page, n.tree.keyOffset(i), buf, 0, n.tree.keySize)
}

// GetValue reads element i's value.
func (n *Node[K, V]) GetValue(i int64) (V, error) {
	var zero V
	if n.tree.valSize == 0 {
		return n.tree.valSer.Deserialize(nil), nil
	}
	buf := make([]byte, n.tree.valSize)
	if err := n.tree.storage.ReadFrom(n.page, n.tree.valueOffset(i), buf, 0, n.tree.valSize); err != nil {
		return zero, err
	}
	return n.tree.valSer.Deserialize(buf), nil
}

// SetValue writes element i's value.
func (n *Node[K, V]) SetValue(i int64, value V) error {
	if n.tree.valSize == 0 {
		return nil
	}
	buf := make([]byte, n.tree.valSize)
	n.tree.valSer.Serialize(value, buf)
	return n.tree.storage.WriteTo(n.page, n.tree.valueOffset(i), buf, 0, n.tree.valSize)
}

// ceiling performs a binary search for the smallest key >= probe, returning
// its index and whether it is an exact match. If no such key exists, index
// is the node's count (the position at which probe would be inserted, and
// also the index of the child to descend into for an internal node).
func (n *Node[K, V]) ceiling(probe K) (int64, bool, error) {
	count, err := n.Count()
	if err != nil {
		return 0, false, err
	}
	lo, hi := int64(0), count
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := n.GetKey(mid)
		if err != nil {
			return 0, false, err
		}
		if n.tree.cmp(k, probe) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < count {
		k, err := n.GetKey(lo)
		if err != nil {
			return 0, false, err
		}
		if n.tree.cmp(k, probe) == 0 {
			return lo, true, nil
		}
	}
	return lo, false, nil
}

// InsertAtLeaf shifts [i, count) right by one slot and writes key/value at i.
func (n *Node[K, V]) InsertAtLeaf(i int64, key K, value V) error {
	count, err := n.Count()
	if err != nil {
		return err
	}
	if count >= n.tree.maxPairCount {
		return btreeerr.NewInvalidArgument("i", "node is full")
	}
	if i < 0 || i > count {
		return btreeerr.NewInvalidArgument("i", fmt.Sprintf("%d outside [0,%d]", i, count))
	}
	if err := n.tree.copyElements(n, n, i, i+1, count-i, 0, true); err != nil {
		return err
	}
	if err := n.SetKey(i, key); err != nil {
		return err
	}
	if err := n.SetValue(i, value); err != nil {
		return err
	}
	return n.SetCount(count + 1)
}

// InsertAtNonLeaf inserts (key, value) at position i of a non-leaf node.
// newChild becomes the left child of the new key if newChildIsLeft, else its
// right child; the other side inherits whatever was previously at child
// position i (or the previous rightmost child, if appending at count).
func (n *Node[K, V]) InsertAtNonLeaf(i int64, key K, value V, newChild int64, newChildIsLeft bool) error {
	count, err := n.Count()
	if err != nil {
		return err
	}
	if count >= n.tree.maxPairCount {
		return btreeerr.NewInvalidArgument("i", "node is full")
	}
	if i < 0 || i > count {
		return btreeerr.NewInvalidArgument("i", fmt.Sprintf("%d outside [0,%d]", i, count))
	}
	oldChild, err := n.childRaw(i)
	if err != nil {
		return err
	}
	left, right := oldChild, newChild
	if newChildIsLeft {
		left, right = newChild, oldChild
	}
	if err := n.tree.copyElements(n, n, i, i+1, count-i, right, false); err != nil {
		return err
	}
	if err := n.SetKey(i, key); err != nil {
		return err
	}
	if err := n.SetValue(i, value); err != nil {
		return err
	}
	if err := n.SetChild(i, left); err != nil {
		return err
	}
	return n.SetCount(count + 1)
}

// RemoveAtLeaf shifts [i+1, count) left by one slot and decrements count.
func (n *Node[K, V]) RemoveAtLeaf(i int64) error {
	count, err := n.Count()
	if err != nil {
		return err
	}
	if i < 0 || i >= count {
		return btreeerr.NewInvalidArgument("i", fmt.Sprintf("%d outside [0,%d)", i, count))
	}
	if err := n.tree.copyElements(n, n, i+1, i, count-i-1, 0, true); err != nil {
		return err
	}
	return n.SetCount(count - 1)
}

// RemoveAtNonLeaf removes element i from a non-leaf node. removeLeftChild
// selects whether child(i) or child(i+1) is discarded; the surviving child
// remains at position i.
func (n *Node[K, V]) RemoveAtNonLeaf(i int64, removeLeftChild bool) error {
	count, err := n.Count()
	if err != nil {
		return err
	}
	if i < 0 || i >= count {
		return btreeerr.NewInvalidArgument("i", fmt.Sprintf("%d outside [0,%d)", i, count))
	}
	var remaining int64
	if removeLeftChild {
		remaining, err = n.childRaw(i + 1)
	} else {
		remaining, err = n.childRaw(i)
	}
	if err != nil {
		return err
	}
	if err := n.tree.copyElements(n, n, i+1, i, count-i-1, remaining, false); err != nil {
		return err
	}
	return n.SetCount(count - 1)
}
