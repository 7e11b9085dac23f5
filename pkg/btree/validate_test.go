package btree

import "testing"

func TestValidateCleanTree(t *testing.T) {
	tree, store := newTestTree(t, pageSizeForMax5)
	for _, k := range []int64{10, 20, 5, 6, 12, 30, 7, 17} {
		mustInsert(t, tree, k, k*10, true)
	}

	ro := store.ReadOnlyView()
	roTree, err := New[int64, int64](ro, tree.keySer, tree.valSer, tree.cmp, tree.Header(), 8)
	if err != nil {
		t.Fatalf("New (read-only): %v", err)
	}
	if err := roTree.Validate(nil); err != nil {
		t.Fatalf("Validate on a clean tree reported corruption: %v", err)
	}
}

func TestValidateRejectsMutableTree(t *testing.T) {
	tree, _ := newTestTree(t, pageSizeForMax5)
	mustInsert(t, tree, 1, 1, true)
	if err := tree.Validate(nil); err == nil {
		t.Fatalf("expected Validate to refuse a mutable (non-read-only) tree")
	}
}

func TestValidateDetectsCorruptLeafByte(t *testing.T) {
	tree, store := newTestTree(t, pageSizeForMax5)
	for _, k := range []int64{10, 20, 5} {
		mustInsert(t, tree, k, k, true)
	}
	rootPage := tree.rootPage

	// Flip the root's is_leaf byte to an invalid value directly on storage.
	if err := store.WriteTo(rootPage, 8, []byte{0x01}, 0, 1); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	ro := store.ReadOnlyView()
	roTree, err := New[int64, int64](ro, tree.keySer, tree.valSer, tree.cmp, tree.Header(), 8)
	if err != nil {
		t.Fatalf("New (read-only): %v", err)
	}
	if err := roTree.Validate(nil); err == nil {
		t.Fatalf("expected Validate to detect the corrupted is_leaf byte")
	}
}
