package btree

import (
	"fmt"

	"go.uber.org/multierr"

	"btreeidx/pkg/btreeerr"
)

// Validate walks the whole tree checking structural invariants: ascending,
// duplicate-free keys within each node, per-subtree key bounds relative to
// the parent, node counts within [min, max] (root excepted), and well-formed
// header bytes. It requires the tree's storage to be read-only and
// aggregates every violation it finds via multierr rather than stopping at
// the first. cancel is polled between nodes; a cancelled validation returns
// whatever it has accumulated so far and skips the total-count check, since
// the subtrees it did not visit were not counted.
func (t *Tree[K, V]) Validate(cancel <-chan struct{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.storage.IsReadOnly() {
		return btreeerr.NewInvalidMode("Validate", "tree storage must be read-only")
	}
	if t.rootPage == noChild {
		if t.count != 0 {
			return btreeerr.NewCorruption(-1, "count", fmt.Sprintf("empty tree reports count=%d", t.count))
		}
		return nil
	}

	var errs error
	total, err := t.validateNode(t.rootPage, true, nil, nil, cancel, &errs)
	if err != nil {
		return err
	}
	select {
	case <-cancel:
		return errs
	default:
	}
	if total != t.count {
		errs = multierr.Append(errs, btreeerr.NewCorruption(t.rootPage, "count", fmt.Sprintf("tree count=%d but %d keys are reachable from the root", t.count, total)))
	}
	return errs
}

func (t *Tree[K, V]) validateNode(page int64, isRoot bool, lower, upper *K, cancel <-chan struct{}, errs *error) (int64, error) {
	select {
	case <-cancel:
		return 0, nil
	default:
	}

	n := t.node(page)
	leaf, err := n.IsLeaf()
	if err != nil {
		if appendIfCorruption(errs, err) {
			return 0, nil
		}
		return 0, err
	}
	count, err := n.Count()
	if err != nil {
		if appendIfCorruption(errs, err) {
			return 0, nil
		}
		return 0, err
	}

	if !isRoot && (count < t.minPairCount || count > t.maxPairCount) {
		*errs = multierr.Append(*errs, btreeerr.NewCorruption(page, "key_value_pair_count", fmt.Sprintf("count %d outside [%d,%d]", count, t.minPairCount, t.maxPairCount)))
	}

	var prevKey *K
	var total int64
	for i := int64(0); i < count; i++ {
		k, err := n.GetKey(i)
		if err != nil {
			return 0, err
		}
		if prevKey != nil && t.cmp(*prevKey, k) >= 0 {
			*errs = multierr.Append(*errs, btreeerr.NewCorruption(page, "key_order", "keys are not strictly ascending"))
		}
		kk := k
		prevKey = &kk
		if lower != nil && t.cmp(k, *lower) <= 0 {
			*errs = multierr.Append(*errs, btreeerr.NewCorruption(page, "key_bounds", "key is not greater than the parent's lower bound"))
		}
		if upper != nil && t.cmp(k, *upper) >= 0 {
			*errs = multierr.Append(*errs, btreeerr.NewCorruption(page, "key_bounds", "key is not less than the parent's upper bound"))
		}
		total++
	}

	if leaf {
		return total, nil
	}

	for i := int64(0); i <= count; i++ {
		childPage, err := n.childRaw(i)
		if err != nil {
			return 0, err
		}
		if childPage == noChild {
			*errs = multierr.Append(*errs, btreeerr.NewCorruption(page, "child", fmt.Sprintf("missing child at index %d", i)))
			continue
		}
		lo, hi := lower, upper
		if i > 0 {
			k, err := n.GetKey(i - 1)
			if err != nil {
				return 0, err
			}
			lo = &k
		}
		if i < count {
			k, err := n.GetKey(i)
			if err != nil {
				return 0, err
			}
			hi = &k
		}
		sub, err := t.validateNode(childPage, false, lo, hi, cancel, errs)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	return total, nil
}

func appendIfCorruption(errs *error, err error) bool {
	if ce, ok := err.(*btreeerr.CorruptionError); ok {
		*errs = multierr.Append(*errs, ce)
		return true
	}
	return false
}
