package storage

import "testing"

func TestMemStore_AllocateWriteReadFree(t *testing.T) {
	m := NewMemStore(64)
	if added, _ := mustInflate(t, m, 4); added != 4 {
		t.Fatalf("inflate: got %d added", added)
	}

	page, ok := m.TryAllocatePage()
	if !ok {
		t.Fatalf("expected allocation to succeed")
	}
	if !m.IsPageAllocated(page) {
		t.Fatalf("page %d should be allocated", page)
	}

	want := []byte("hello world, btree")
	if err := m.WriteTo(page, 0, want, 0, len(want)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got := make([]byte, len(want))
	if err := m.ReadFrom(page, 0, got, 0, len(got)); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}

	if err := m.FreePage(page); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if m.IsPageAllocated(page) {
		t.Fatalf("page %d should no longer be allocated", page)
	}
}

func TestMemStore_FixedCapacityNeverGrows(t *testing.T) {
	m := NewFixedMemStore(32, 2)
	if !m.IsCapacityFixed() {
		t.Fatalf("expected fixed capacity")
	}
	added, err := m.TryInflate(10, nil, nil)
	if err != nil || added != 0 {
		t.Fatalf("inflate on fixed store: added=%d err=%v", added, err)
	}

	p0, ok := m.TryAllocatePage()
	if !ok {
		t.Fatalf("first allocation should succeed")
	}
	p1, ok := m.TryAllocatePage()
	if !ok {
		t.Fatalf("second allocation should succeed")
	}
	if p0 == p1 {
		t.Fatalf("allocated pages should be distinct")
	}
	if _, ok := m.TryAllocatePage(); ok {
		t.Fatalf("third allocation should fail: capacity exhausted")
	}

	if err := m.FreePage(p0); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if _, ok := m.TryAllocatePage(); !ok {
		t.Fatalf("allocation should succeed again after a free")
	}
}

func TestMemStore_ReadOnlyRejectsMutation(t *testing.T) {
	m := NewMemStore(16)
	mustInflate(t, m, 1)
	page, _ := m.TryAllocatePage()

	ro := m.ReadOnlyView()
	if !ro.IsReadOnly() {
		t.Fatalf("expected read-only view")
	}
	if _, ok := ro.TryAllocatePage(); ok {
		t.Fatalf("read-only store should not allocate")
	}
	if err := ro.WriteTo(page, 0, []byte{1}, 0, 1); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func mustInflate(t *testing.T, m *MemStore, n int64) (int64, error) {
	t.Helper()
	added, err := m.TryInflate(n, nil, nil)
	if err != nil {
		t.Fatalf("TryInflate: %v", err)
	}
	return added, err
}
