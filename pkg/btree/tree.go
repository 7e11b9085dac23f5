// Package btree implements a persistent, page-backed B-Tree index mapping
// keys of a totally-ordered type K to values of type V. All structural data
// lives in pages obtained from a storage.PageStorage; a Tree itself holds
// only the root pointer, the element count, and the serializers/comparator
// needed to read and write pages.
package btree

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"btreeidx/pkg/btreeerr"
	"btreeidx/pkg/serializer"
	"btreeidx/pkg/storage"
)

// Header carries the two pieces of Tree state the host is responsible for
// persisting and restoring across process runs: the root page (noChild if
// the tree is empty) and the total key count. pkg/storage pages have no
// notion of a reserved metadata page, so a Tree does not invent one; the
// host reads Tree.Header() after mutating and feeds it back into New on the
// next run.
type Header struct {
	RootPageIndex int64
	Count         int64
}

// Tree owns one B-Tree index over a page storage. The zero value is not
// usable; construct with New.
type Tree[K any, V any] struct {
	mu sync.Mutex

	storage storage.PageStorage
	keySer  serializer.Serializer[K]
	valSer  serializer.Serializer[V]
	cmp     serializer.Comparator[K]

	keySize int
	valSize int

	elementSize      int
	maxPairCount     int64
	minPairCount     int64
	maxMovePairCount int64

	rootPage int64
	count    int64

	traversing bool

	logger *zap.Logger
}

// Option configures optional Tree behavior at construction time.
type Option[K any, V any] func(*Tree[K, V])

// WithLogger attaches a structured logger for split/rotate/merge/corruption
// events. A nil logger leaves the default, zap.NewNop(), in place.
func WithLogger[K any, V any](logger *zap.Logger) Option[K, V] {
	return func(t *Tree[K, V]) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs a Tree over store using keySer/valSer/cmp to read and write
// keys and values, restoring header from a previously persisted Header (use
// Header{RootPageIndex: -1} for a fresh, empty tree). page_size must be able
// to hold at least 5 elements per node; max_move_pair_count bounds how many
// slots a single bulk shift chunk moves at once and must be >= 1.
func New[K any, V any](
	store storage.PageStorage,
	keySer serializer.Serializer[K],
	valSer serializer.Serializer[V],
	cmp serializer.Comparator[K],
	header Header,
	maxMovePairCount int64,
	opts ...Option[K, V],
) (*Tree[K, V], error) {
	if store == nil {
		return nil, btreeerr.NewInvalidArgument("store", "must not be nil")
	}
	if cmp == nil {
		return nil, btreeerr.NewInvalidArgument("cmp", "must not be nil")
	}
	if keySer == nil || keySer.Size() < 1 {
		return nil, btreeerr.NewInvalidArgument("keySer", "must not be nil and key size must be >= 1")
	}
	if valSer == nil || valSer.Size() < 0 {
		return nil, btreeerr.NewInvalidArgument("valSer", "must not be nil and value size must be >= 0")
	}
	if maxMovePairCount < 1 {
		return nil, btreeerr.NewInvalidArgument("maxMovePairCount", "must be >= 1")
	}

	elementSize := keySer.Size() + valSer.Size() + 8
	minRequired := headerSize + elementSize*5
	if store.PageSize() < minRequired {
		return nil, btreeerr.NewInvalidArgument("store.PageSize", fmt.Sprintf("%d too small: need >= %d for a 5-element node", store.PageSize(), minRequired))
	}

	maxPairCount := int64((store.PageSize() - headerSize) / elementSize)
	if maxPairCount%2 == 0 {
		maxPairCount--
	}
	if maxPairCount < 5 {
		return nil, btreeerr.NewInvalidArgument("store.PageSize", "resulting capacity below the minimum of 5")
	}

	t := &Tree[K, V]{
		storage:          store,
		keySer:           keySer,
		valSer:           valSer,
		cmp:              cmp,
		keySize:          keySer.Size(),
		valSize:          valSer.Size(),
		elementSize:      elementSize,
		maxPairCount:     maxPairCount,
		minPairCount:     maxPairCount / 2,
		maxMovePairCount: maxMovePairCount,
		rootPage:         header.RootPageIndex,
		count:            header.Count,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Header returns the current root page index and count, for the host to
// persist across process runs.
func (t *Tree[K, V]) Header() Header {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Header{RootPageIndex: t.rootPage, Count: t.count}
}

// MaxPairCount is the per-node capacity this tree was constructed with.
func (t *Tree[K, V]) MaxPairCount() int64 { return t.maxPairCount }

// MinPairCount is the minimum element count a non-root node must maintain.
func (t *Tree[K, V]) MinPairCount() int64 { return t.minPairCount }

func (t *Tree[K, V]) node(page int64) *Node[K, V] {
	return &Node[K, V]{tree: t, page: page}
}

func (t *Tree[K, V]) slotOffset(i int64) int {
	return headerSize + int(i)*t.elementSize
}

func (t *Tree[K, V]) keyOffset(i int64) int { return t.slotOffset(i) }

func (t *Tree[K, V]) valueOffset(i int64) int { return t.slotOffset(i) + t.keySize }

func (t *Tree[K, V]) rightChildOffset(i int64) int { return t.slotOffset(i) + t.keySize + t.valSize }

func (t *Tree[K, V]) allocatePage() (int64, bool) {
	return t.storage.TryAllocatePage()
}

func (t *Tree[K, V]) corruption(page int64, field, reason string) error {
	err := btreeerr.NewCorruption(page, field, reason)
	t.logger.Error("btree: corruption detected", zap.Int64("page", page), zap.String("field", field), zap.String("reason", reason))
	return err
}

// copyElements moves `amount` contiguous slots from src[srcFrom:] to
// dst[dstFrom:], chunked by maxMovePairCount and directionally ordered to
// tolerate an overlapping in-place shift. Every slot's own trailing child
// pointer travels with it; only the destination range's left boundary child
// (dst's child at dstFrom) is not covered by any moved slot and must be
// supplied explicitly via leftChild. For leaf moves leftChild is ignored.
func (t *Tree[K, V]) copyElements(src, dst *Node[K, V], srcFrom, dstFrom, amount, leftChild int64, isLeaf bool) error {
	if amount < 0 {
		return btreeerr.NewInvalidArgument("amount", "must be >= 0")
	}
	if t.maxMovePairCount <= 0 {
		return t.corruption(dst.page, "max_move_pair_count", "chunk size must be positive")
	}
	if amount > 0 {
		reverse := src.page == dst.page && dstFrom > srcFrom
		chunk := t.maxMovePairCount
		if reverse {
			remaining := amount
			for remaining > 0 {
				n := remaining
				if n > chunk {
					n = chunk
				}
				if err := t.copyChunk(src, dst, srcFrom+remaining-n, dstFrom+remaining-n, n); err != nil {
					return err
				}
				remaining -= n
			}
		} else {
			var done int64
			for done < amount {
				n := amount - done
				if n > chunk {
					n = chunk
				}
				if err := t.copyChunk(src, dst, srcFrom+done, dstFrom+done, n); err != nil {
					return err
				}
				done += n
			}
		}
	}
	if !isLeaf {
		return dst.SetChild(dstFrom, leftChild)
	}
	return nil
}

func (t *Tree[K, V]) copyChunk(src, dst *Node[K, V], srcIdx, dstIdx, n int64) error {
	length := int(n) * t.elementSize
	if length == 0 {
		return nil
	}
	buf := make([]byte, length)
	if err := t.storage.ReadFrom(src.page, t.slotOffset(srcIdx), buf, 0, length); err != nil {
		return err
	}
	return t.storage.WriteTo(dst.page, t.slotOffset(dstIdx), buf, 0, length)
}

func (t *Tree[K, V]) childNode(n *Node[K, V], i int64) (*Node[K, V], error) {
	page, err := n.childRaw(i)
	if err != nil {
		return nil, err
	}
	if page == noChild {
		return nil, t.corruption(n.page, "child", fmt.Sprintf("expected a child at index %d but found none", i))
	}
	return t.node(page), nil
}

// TryGetValue descends from the root looking for key, polling cancel
// between node visits. A cancelled search returns (zero, false, nil) with no
// mutation. Reads against a read-only (frozen) tree take no lock, matching
// the Reader's safe-for-concurrent-reads guarantee.
func (t *Tree[K, V]) TryGetValue(key K, cancel <-chan struct{}) (V, bool, error) {
	if !t.storage.IsReadOnly() {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	var zero V
	page := t.rootPage
	for page != noChild {
		select {
		case <-cancel:
			return zero, false, nil
		default:
		}
		n := t.node(page)
		idx, found, err := n.ceiling(key)
		if err != nil {
			return zero, false, err
		}
		if found {
			v, err := n.GetValue(idx)
			return v, true, err
		}
		leaf, err := n.IsLeaf()
		if err != nil {
			return zero, false, err
		}
		if leaf {
			return zero, false, nil
		}
		childPage, err := n.childRaw(idx)
		if err != nil {
			return zero, false, err
		}
		if childPage == noChild {
			return zero, false, t.corruption(page, "child", "missing child during search descent")
		}
		page = childPage
	}
	return zero, false, nil
}

// ContainsKey is TryGetValue discarding the value.
func (t *Tree[K, V]) ContainsKey(key K, cancel <-chan struct{}) (bool, error) {
	_, found, err := t.TryGetValue(key, cancel)
	return found, err
}

func (t *Tree[K, V]) setRootBootstrap(page int64, key K, value V) error {
	root := t.node(page)
	if err := root.SetIsLeaf(true); err != nil {
		return err
	}
	if err := root.SetChild(0, noChild); err != nil {
		return err
	}
	if err := root.SetCount(0); err != nil {
		return err
	}
	return root.InsertAtLeaf(0, key, value)
}

// Insert adds or updates key -> value. changed reports whether the tree's
// observable state changed (a new key inserted, or an existing key updated);
// alreadyExisted reports whether key was already present. If updateIfExists
// is false, an existing key is left untouched and (false, true) is returned.
// Allocation failure during a structural growth step falls back to an
// update-only walk rather than failing the whole call: splits already
// performed earlier in the same call are legal and retained.
func (t *Tree[K, V]) Insert(key K, value V, updateIfExists bool) (changed bool, alreadyExisted bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.traversing {
		return false, false, btreeerr.NewInvalidMode("Insert", "a traversal is in progress")
	}
	if t.storage.IsReadOnly() {
		return false, false, btreeerr.NewInvalidMode("Insert", "tree storage is read-only")
	}

	if t.rootPage == noChild {
		page, ok := t.allocatePage()
		if !ok {
			return false, false, nil
		}
		if err := t.setRootBootstrap(page, key, value); err != nil {
			return false, false, err
		}
		t.rootPage = page
		t.count = 1
		return true, false, nil
	}

	root := t.node(t.rootPage)
	rootCount, err := root.Count()
	if err != nil {
		return false, false, err
	}
	if rootCount >= t.maxPairCount {
		grew, err := t.splitRoot()
		if err != nil {
			return false, false, err
		}
		if !grew {
			return t.updateOnlyFallback(key, value, updateIfExists)
		}
	}

	return t.insertDescend(key, value, updateIfExists)
}

// splitRoot implements the preemptive root split: allocate a new root and a
// split partner, temporarily give the new root a single placeholder slot so
// the generic non-leaf insert has a slot to shift out of the way, split the
// old root into it, then correct the count back to the one real key the
// split produced.
func (t *Tree[K, V]) splitRoot() (bool, error) {
	newRootPage, ok := t.allocatePage()
	if !ok {
		return false, nil
	}
	partnerPage, ok := t.allocatePage()
	if !ok {
		if err := t.storage.FreePage(newRootPage); err != nil {
			return false, err
		}
		return false, nil
	}
	newRoot := t.node(newRootPage)
	if err := newRoot.SetIsLeaf(false); err != nil {
		return false, err
	}
	if err := newRoot.SetChild(0, t.rootPage); err != nil {
		return false, err
	}
	if err := newRoot.SetChild(1, noChild); err != nil {
		return false, err
	}
	if err := newRoot.SetCount(1); err != nil {
		return false, err
	}
	if err := t.splitChildInto(newRoot, 0, partnerPage); err != nil {
		return false, err
	}
	if err := newRoot.SetCount(1); err != nil {
		return false, err
	}
	t.rootPage = newRootPage
	return true, nil
}

// splitChild splits parent's full child at index i, allocating the new
// sibling itself. ok is false (with a nil error) if allocation failed.
func (t *Tree[K, V]) splitChild(parent *Node[K, V], i int64) (bool, error) {
	page, ok := t.allocatePage()
	if !ok {
		return false, nil
	}
	if err := t.splitChildInto(parent, i, page); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tree[K, V]) splitChildInto(parent *Node[K, V], i int64, newPage int64) error {
	targetPage, err := parent.childRaw(i)
	if err != nil {
		return err
	}
	target := t.node(targetPage)
	count, err := target.Count()
	if err != nil {
		return err
	}
	leaf, err := target.IsLeaf()
	if err != nil {
		return err
	}
	m := t.maxPairCount / 2

	midKey, err := target.GetKey(m)
	if err != nil {
		return err
	}
	midValue, err := target.GetValue(m)
	if err != nil {
		return err
	}

	newNode := t.node(newPage)
	if err := newNode.SetIsLeaf(leaf); err != nil {
		return err
	}

	var leftChild int64 = noChild
	if !leaf {
		leftChild, err = target.childRaw(m + 1)
		if err != nil {
			return err
		}
	}
	amount := count - (m + 1)
	if err := t.copyElements(target, newNode, m+1, 0, amount, leftChild, leaf); err != nil {
		return err
	}
	if err := newNode.SetCount(amount); err != nil {
		return err
	}
	if err := target.SetCount(m); err != nil {
		return err
	}

	t.logger.Debug("btree: split", zap.Int64("target", targetPage), zap.Int64("new", newPage), zap.Int64("parent", parent.page), zap.Int64("index", i))

	return parent.InsertAtNonLeaf(i, midKey, midValue, newPage, false)
}

// insertDescend walks from the (already non-full) root to a leaf, splitting
// any full child it needs to pass through, and performs the insert or
// update at the leaf (or at an internal node, if the key already lives
// there).
func (t *Tree[K, V]) insertDescend(key K, value V, updateIfExists bool) (bool, bool, error) {
	page := t.rootPage
	for {
		n := t.node(page)
		idx, found, err := n.ceiling(key)
		if err != nil {
			return false, false, err
		}
		if found {
			if !updateIfExists {
				return false, true, nil
			}
			if err := n.SetValue(idx, value); err != nil {
				return false, false, err
			}
			return true, true, nil
		}
		leaf, err := n.IsLeaf()
		if err != nil {
			return false, false, err
		}
		if leaf {
			if err := n.InsertAtLeaf(idx, key, value); err != nil {
				return false, false, err
			}
			t.count++
			return true, false, nil
		}

		childPage, err := n.childRaw(idx)
		if err != nil {
			return false, false, err
		}
		if childPage == noChild {
			return false, false, t.corruption(page, "child", "missing child during insert descent")
		}
		child := t.node(childPage)
		childCount, err := child.Count()
		if err != nil {
			return false, false, err
		}
		if childCount >= t.maxPairCount {
			ok, err := t.splitChild(n, idx)
			if err != nil {
				return false, false, err
			}
			if !ok {
				return t.updateOnlyFallback(key, value, updateIfExists)
			}
			idx, found, err = n.ceiling(key)
			if err != nil {
				return false, false, err
			}
			if found {
				if !updateIfExists {
					return false, true, nil
				}
				if err := n.SetValue(idx, value); err != nil {
					return false, false, err
				}
				return true, true, nil
			}
			childPage, err = n.childRaw(idx)
			if err != nil {
				return false, false, err
			}
			if childPage == noChild {
				return false, false, t.corruption(page, "child", "missing child after split")
			}
		}
		page = childPage
	}
}

// updateOnlyFallback walks the tree without ever splitting, used when a
// structural allocation needed to grow the tree failed.
func (t *Tree[K, V]) updateOnlyFallback(key K, value V, updateIfExists bool) (bool, bool, error) {
	page := t.rootPage
	for page != noChild {
		n := t.node(page)
		idx, found, err := n.ceiling(key)
		if err != nil {
			return false, false, err
		}
		if found {
			if !updateIfExists {
				return false, true, nil
			}
			if err := n.SetValue(idx, value); err != nil {
				return false, false, err
			}
			return true, true, nil
		}
		leaf, err := n.IsLeaf()
		if err != nil {
			return false, false, err
		}
		if leaf {
			return false, false, nil
		}
		childPage, err := n.childRaw(idx)
		if err != nil {
			return false, false, err
		}
		page = childPage
	}
	return false, false, nil
}

// Remove deletes key if present, returning its prior value. Rebalancing
// (rotate or merge) keeps every non-root node within [min, max] throughout.
func (t *Tree[K, V]) Remove(key K) (V, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero V
	if t.traversing {
		return zero, false, btreeerr.NewInvalidMode("Remove", "a traversal is in progress")
	}
	if t.storage.IsReadOnly() {
		return zero, false, btreeerr.NewInvalidMode("Remove", "tree storage is read-only")
	}
	if t.rootPage == noChild {
		return zero, false, nil
	}

	val, found, err := t.removeFrom(t.rootPage, key)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}

	root := t.node(t.rootPage)
	rootCount, err := root.Count()
	if err != nil {
		return zero, false, err
	}
	if rootCount == 0 {
		leaf, err := root.IsLeaf()
		if err != nil {
			return zero, false, err
		}
		oldRoot := t.rootPage
		if leaf {
			t.rootPage = noChild
		} else {
			onlyChild, err := root.childRaw(0)
			if err != nil {
				return zero, false, err
			}
			t.rootPage = onlyChild
		}
		if err := t.storage.FreePage(oldRoot); err != nil {
			return zero, false, err
		}
	}
	t.count--
	return val, true, nil
}

func (t *Tree[K, V]) removeFrom(page int64, key K) (V, bool, error) {
	var zero V
	n := t.node(page)
	idx, found, err := n.ceiling(key)
	if err != nil {
		return zero, false, err
	}
	leaf, err := n.IsLeaf()
	if err != nil {
		return zero, false, err
	}

	if found {
		v, err := n.GetValue(idx)
		if err != nil {
			return zero, false, err
		}
		if leaf {
			if err := n.RemoveAtLeaf(idx); err != nil {
				return zero, false, err
			}
			return v, true, nil
		}

		leftPage, err := n.childRaw(idx)
		if err != nil {
			return zero, false, err
		}
		rightPage, err := n.childRaw(idx + 1)
		if err != nil {
			return zero, false, err
		}
		leftCount, err := t.node(leftPage).Count()
		if err != nil {
			return zero, false, err
		}
		if leftCount > t.minPairCount {
			predKey, predVal, err := t.predecessor(n, idx)
			if err != nil {
				return zero, false, err
			}
			if err := n.SetKey(idx, predKey); err != nil {
				return zero, false, err
			}
			if err := n.SetValue(idx, predVal); err != nil {
				return zero, false, err
			}
			if _, _, err := t.removeFrom(leftPage, predKey); err != nil {
				return zero, false, err
			}
			return v, true, nil
		}

		rightCount, err := t.node(rightPage).Count()
		if err != nil {
			return zero, false, err
		}
		if rightCount > t.minPairCount {
			succKey, succVal, err := t.successor(n, idx)
			if err != nil {
				return zero, false, err
			}
			if err := n.SetKey(idx, succKey); err != nil {
				return zero, false, err
			}
			if err := n.SetValue(idx, succVal); err != nil {
				return zero, false, err
			}
			if _, _, err := t.removeFrom(rightPage, succKey); err != nil {
				return zero, false, err
			}
			return v, true, nil
		}

		merged, err := t.mergeChildren(n, idx)
		if err != nil {
			return zero, false, err
		}
		if _, _, err := t.removeFrom(merged.page, key); err != nil {
			return zero, false, err
		}
		return v, true, nil
	}

	if leaf {
		return zero, false, nil
	}

	childPage, err := n.childRaw(idx)
	if err != nil {
		return zero, false, err
	}
	if childPage == noChild {
		return zero, false, t.corruption(page, "child", "missing child during removal descent")
	}
	childCount, err := t.node(childPage).Count()
	if err != nil {
		return zero, false, err
	}
	if childCount == t.minPairCount {
		rebalanced, err := t.rebalanceChild(n, idx)
		if err != nil {
			return zero, false, err
		}
		childPage = rebalanced.page
	}
	return t.removeFrom(childPage, key)
}

// rebalanceChild restores parent's child at i to more than the minimum
// element count before a removal descends into it: rotate from a sibling
// that can spare an element, else merge with a sibling.
func (t *Tree[K, V]) rebalanceChild(parent *Node[K, V], i int64) (*Node[K, V], error) {
	parentCount, err := parent.Count()
	if err != nil {
		return nil, err
	}
	if i > 0 {
		leftPage, err := parent.childRaw(i - 1)
		if err != nil {
			return nil, err
		}
		leftCount, err := t.node(leftPage).Count()
		if err != nil {
			return nil, err
		}
		if leftCount > t.minPairCount {
			if err := t.rotateFromLeft(parent, i); err != nil {
				return nil, err
			}
			childPage, err := parent.childRaw(i)
			if err != nil {
				return nil, err
			}
			return t.node(childPage), nil
		}
	}
	if i < parentCount {
		rightPage, err := parent.childRaw(i + 1)
		if err != nil {
			return nil, err
		}
		rightCount, err := t.node(rightPage).Count()
		if err != nil {
			return nil, err
		}
		if rightCount > t.minPairCount {
			if err := t.rotateFromRight(parent, i); err != nil {
				return nil, err
			}
			childPage, err := parent.childRaw(i)
			if err != nil {
				return nil, err
			}
			return t.node(childPage), nil
		}
	}
	if i < parentCount {
		return t.mergeChildren(parent, i)
	}
	return t.mergeChildren(parent, i-1)
}

func (t *Tree[K, V]) rotateFromLeft(parent *Node[K, V], i int64) error {
	child, err := t.childNode(parent, i)
	if err != nil {
		return err
	}
	left, err := t.childNode(parent, i-1)
	if err != nil {
		return err
	}
	leaf, err := child.IsLeaf()
	if err != nil {
		return err
	}
	parentKey, err := parent.GetKey(i - 1)
	if err != nil {
		return err
	}
	parentVal, err := parent.GetValue(i - 1)
	if err != nil {
		return err
	}
	leftCount, err := left.Count()
	if err != nil {
		return err
	}

	if leaf {
		if err := child.InsertAtLeaf(0, parentKey, parentVal); err != nil {
			return err
		}
	} else {
		leftRightmost, err := left.childRaw(leftCount)
		if err != nil {
			return err
		}
		if err := child.InsertAtNonLeaf(0, parentKey, parentVal, leftRightmost, true); err != nil {
			return err
		}
	}

	lastKey, err := left.GetKey(leftCount - 1)
	if err != nil {
		return err
	}
	lastVal, err := left.GetValue(leftCount - 1)
	if err != nil {
		return err
	}
	if err := parent.SetKey(i-1, lastKey); err != nil {
		return err
	}
	if err := parent.SetValue(i-1, lastVal); err != nil {
		return err
	}

	t.logger.Debug("btree: rotate from left", zap.Int64("parent", parent.page), zap.Int64("index", i))
	return left.SetCount(leftCount - 1)
}

func (t *Tree[K, V]) rotateFromRight(parent *Node[K, V], i int64) error {
	child, err := t.childNode(parent, i)
	if err != nil {
		return err
	}
	right, err := t.childNode(parent, i+1)
	if err != nil {
		return err
	}
	leaf, err := child.IsLeaf()
	if err != nil {
		return err
	}
	childCount, err := child.Count()
	if err != nil {
		return err
	}
	parentKey, err := parent.GetKey(i)
	if err != nil {
		return err
	}
	parentVal, err := parent.GetValue(i)
	if err != nil {
		return err
	}

	if leaf {
		if err := child.InsertAtLeaf(childCount, parentKey, parentVal); err != nil {
			return err
		}
	} else {
		rightLeftmost, err := right.childRaw(0)
		if err != nil {
			return err
		}
		if err := child.InsertAtNonLeaf(childCount, parentKey, parentVal, rightLeftmost, false); err != nil {
			return err
		}
	}

	firstKey, err := right.GetKey(0)
	if err != nil {
		return err
	}
	firstVal, err := right.GetValue(0)
	if err != nil {
		return err
	}
	if err := parent.SetKey(i, firstKey); err != nil {
		return err
	}
	if err := parent.SetValue(i, firstVal); err != nil {
		return err
	}

	t.logger.Debug("btree: rotate from right", zap.Int64("parent", parent.page), zap.Int64("index", i))
	if leaf {
		return right.RemoveAtLeaf(0)
	}
	return right.RemoveAtNonLeaf(0, true)
}

// mergeChildren combines parent's children at i and i+1 (both at min) with
// the separator key at i into a single node, freeing the right sibling's
// page. The parent loses its pointer to the right sibling before the page
// is freed, so a partial failure never leaves a dangling reference live.
func (t *Tree[K, V]) mergeChildren(parent *Node[K, V], i int64) (*Node[K, V], error) {
	left, err := t.childNode(parent, i)
	if err != nil {
		return nil, err
	}
	right, err := t.childNode(parent, i+1)
	if err != nil {
		return nil, err
	}
	parentKey, err := parent.GetKey(i)
	if err != nil {
		return nil, err
	}
	parentVal, err := parent.GetValue(i)
	if err != nil {
		return nil, err
	}
	leaf, err := left.IsLeaf()
	if err != nil {
		return nil, err
	}
	leftCount, err := left.Count()
	if err != nil {
		return nil, err
	}
	rightCount, err := right.Count()
	if err != nil {
		return nil, err
	}
	rightPage := right.page

	if err := parent.RemoveAtNonLeaf(i, false); err != nil {
		return nil, err
	}

	if leaf {
		if err := left.InsertAtLeaf(leftCount, parentKey, parentVal); err != nil {
			return nil, err
		}
		newCount := leftCount + 1
		if err := t.copyElements(right, left, 0, newCount, rightCount, 0, true); err != nil {
			return nil, err
		}
		if err := left.SetCount(newCount + rightCount); err != nil {
			return nil, err
		}
	} else {
		rightLeftmost, err := right.childRaw(0)
		if err != nil {
			return nil, err
		}
		if err := left.InsertAtNonLeaf(leftCount, parentKey, parentVal, rightLeftmost, false); err != nil {
			return nil, err
		}
		newCount := leftCount + 1
		if err := t.copyElements(right, left, 0, newCount, rightCount, rightLeftmost, false); err != nil {
			return nil, err
		}
		if err := left.SetCount(newCount + rightCount); err != nil {
			return nil, err
		}
	}

	t.logger.Debug("btree: merge", zap.Int64("parent", parent.page), zap.Int64("index", i), zap.Int64("freed", rightPage))
	if err := t.storage.FreePage(rightPage); err != nil {
		return nil, err
	}
	return left, nil
}

func (t *Tree[K, V]) predecessor(n *Node[K, V], i int64) (K, V, error) {
	var zk K
	var zv V
	child, err := t.childNode(n, i)
	if err != nil {
		return zk, zv, err
	}
	for {
		leaf, err := child.IsLeaf()
		if err != nil {
			return zk, zv, err
		}
		if leaf {
			break
		}
		count, err := child.Count()
		if err != nil {
			return zk, zv, err
		}
		child, err = t.childNode(child, count)
		if err != nil {
			return zk, zv, err
		}
	}
	count, err := child.Count()
	if err != nil {
		return zk, zv, err
	}
	k, err := child.GetKey(count - 1)
	if err != nil {
		return zk, zv, err
	}
	v, err := child.GetValue(count - 1)
	return k, v, err
}

func (t *Tree[K, V]) successor(n *Node[K, V], i int64) (K, V, error) {
	var zk K
	var zv V
	child, err := t.childNode(n, i+1)
	if err != nil {
		return zk, zv, err
	}
	for {
		leaf, err := child.IsLeaf()
		if err != nil {
			return zk, zv, err
		}
		if leaf {
			break
		}
		child, err = t.childNode(child, 0)
		if err != nil {
			return zk, zv, err
		}
	}
	k, err := child.GetKey(0)
	if err != nil {
		return zk, zv, err
	}
	v, err := child.GetValue(0)
	return k, v, err
}
