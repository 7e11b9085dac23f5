package btree

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestNewReaderRejectsMutableTree(t *testing.T) {
	tree, _ := newTestTree(t, pageSizeForMax5)
	if _, err := NewReader[int64, int64](tree); err == nil {
		t.Fatalf("expected NewReader to refuse a mutable (non-read-only) tree")
	}
}

func TestReaderBasicLookup(t *testing.T) {
	tree, store := newTestTree(t, pageSizeForMax5)
	for _, k := range []int64{10, 20, 5, 6, 12, 30, 7, 17} {
		mustInsert(t, tree, k, k*100, true)
	}

	ro := store.ReadOnlyView()
	roTree, err := New[int64, int64](ro, tree.keySer, tree.valSer, tree.cmp, tree.Header(), 8)
	if err != nil {
		t.Fatalf("New (read-only): %v", err)
	}
	reader, err := NewReader[int64, int64](roTree)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if reader.Count() != 8 {
		t.Fatalf("Count() = %d, want 8", reader.Count())
	}
	if _, ok := reader.RootNode(); !ok {
		t.Fatalf("RootNode() ok=false on a non-empty tree")
	}
	v, ok, err := reader.TryGetValue(12, nil)
	if err != nil || !ok || v != 1200 {
		t.Fatalf("TryGetValue(12) = %d,%v,%v, want 1200,true,nil", v, ok, err)
	}
	if found, err := reader.ContainsKey(999, nil); err != nil || found {
		t.Fatalf("ContainsKey(999) = %v,%v, want false,nil", found, err)
	}
}

// TestConcurrentReadersAgree exercises spec.md's frozen-tree concurrency
// scenario: several goroutines call TryGetValue against the same Reader at
// once and must all observe results consistent with a single-threaded
// lookup, with no lock serializing them (the read-only tree never takes
// Tree.mu at all).
func TestConcurrentReadersAgree(t *testing.T) {
	tree, store := newTestTree(t, pageSizeForMax5)
	const n = 2000
	want := make(map[int64]int64, n)
	for i := int64(0); i < n; i++ {
		key := (i * 2654435761) % 1000003
		want[key] = i
		mustInsert(t, tree, key, i, true)
	}

	ro := store.ReadOnlyView()
	roTree, err := New[int64, int64](ro, tree.keySer, tree.valSer, tree.cmp, tree.Header(), 8)
	if err != nil {
		t.Fatalf("New (read-only): %v", err)
	}
	reader, err := NewReader[int64, int64](roTree)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	keys := make([]int64, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(keys); i += 4 {
				key := keys[i]
				v, ok, err := reader.TryGetValue(key, nil)
				if err != nil {
					return err
				}
				if !ok || v != want[key] {
					t.Errorf("worker %d: TryGetValue(%d) = %d,%v, want %d,true", w, key, v, ok, want[key])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup: %v", err)
	}
}
