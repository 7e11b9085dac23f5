package storage

import (
	"path/filepath"
	"testing"
)

func openFS(t *testing.T, name string, pageSize int) *FileStore {
	t.Helper()
	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, name), pageSize, false)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func TestFileStore_RoundTripAcrossPages(t *testing.T) {
	fs := openFS(t, "pages.bin", 64)
	if _, err := fs.TryInflate(4, nil, nil); err != nil {
		t.Fatalf("TryInflate: %v", err)
	}

	pages := make([]int64, 0, 4)
	for i := 0; i < 4; i++ {
		p, ok := fs.TryAllocatePage()
		if !ok {
			t.Fatalf("allocate %d: failed", i)
		}
		pages = append(pages, p)
		payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if err := fs.WriteTo(p, 10, payload, 0, len(payload)); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
	}

	for i, p := range pages {
		got := make([]byte, 3)
		if err := fs.ReadFrom(p, 10, got, 0, 3); err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
		want := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if string(got) != string(want) {
			t.Fatalf("page %d mismatch: got %v want %v", p, got, want)
		}
	}
}

func TestFileStore_ReopenRecoversCapacity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	fs, err := OpenFileStore(path, 32, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.TryInflate(3, nil, nil); err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFileStore(path, 32, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.PageCapacity(); got != 3 {
		t.Fatalf("expected recovered capacity 3, got %d", got)
	}
}

func TestFileStore_ReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")
	fs, err := OpenFileStore(path, 32, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.TryInflate(1, nil, nil); err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ro, err := OpenFileStore(path, 32, true)
	if err != nil {
		t.Fatalf("reopen read-only: %v", err)
	}
	defer ro.Close()
	if !ro.IsReadOnly() {
		t.Fatalf("expected read-only store")
	}
	if err := ro.WriteTo(0, 0, []byte{1}, 0, 1); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if _, ok := ro.TryAllocatePage(); ok {
		t.Fatalf("read-only store should not allocate")
	}
}
