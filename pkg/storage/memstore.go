package storage

import (
	"sync"

	"github.com/dsnet/golib/memfile"
)

// MemStore is a PageStorage backed entirely by memory, using
// github.com/dsnet/golib/memfile as a drop-in, disk-free stand-in for the
// *os.File a FileStore would otherwise need. It is the fastest way to stand
// up a Tree in tests or for a short-lived, process-local index.
type MemStore struct {
	mu       sync.Mutex
	file     *memfile.File
	pageSize int
	fixed    bool
	readOnly bool
	alloc    *freeList
}

// NewMemStore creates a growable, read-write in-memory page storage with the
// given fixed page size and an initial capacity of zero pages; call
// TryInflate (or rely on the tree doing so is not automatic — callers must
// grow it themselves) before the first allocation.
func NewMemStore(pageSize int) *MemStore {
	return &MemStore{
		file:     memfile.New(nil),
		pageSize: pageSize,
		alloc:    newFreeList(),
	}
}

// NewFixedMemStore creates an in-memory page storage whose capacity is fixed
// at creation time and can never grow; TryInflate is always a no-op. This is
// the shape used by the "allocation always fails" testable properties (§8).
func NewFixedMemStore(pageSize int, capacity int64) *MemStore {
	m := NewMemStore(pageSize)
	m.fixed = true
	m.alloc.capacity = capacity
	return m
}

// ReadOnlyView returns a read-only MemStore over a copy of the backing bytes.
// Its capacity and allocation bookkeeping are frozen at the moment of the
// call; further mutation of m through the original handle is not reflected.
func (m *MemStore) ReadOnlyView() *MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := append([]byte(nil), m.file.Bytes()...)
	view := &MemStore{
		file:     memfile.New(snapshot),
		pageSize: m.pageSize,
		fixed:    true,
		readOnly: true,
		alloc: &freeList{
			capacity:  m.alloc.capacity,
			allocated: m.alloc.allocated,
			free:      append([]int64(nil), m.alloc.free...),
		},
	}
	return view
}

func (m *MemStore) PageSize() int { return m.pageSize }

func (m *MemStore) PageCapacity() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc.capacity
}

func (m *MemStore) AllocatedPageCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc.allocatedCount()
}

func (m *MemStore) IsCapacityFixed() bool { return m.fixed }

func (m *MemStore) IsReadOnly() bool { return m.readOnly }

func (m *MemStore) IsPageOnStorage(i int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc.isOnStorage(i)
}

func (m *MemStore) IsPageAllocated(i int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc.isAllocated(i)
}

func (m *MemStore) offset(page int64, within int) int64 {
	return page*int64(m.pageSize) + int64(within)
}

func (m *MemStore) ReadFrom(page int64, offset int, buf []byte, bufOff int, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alloc.isOnStorage(page) {
		return ErrOutOfRange
	}
	_, err := m.file.ReadAt(buf[bufOff:bufOff+length], m.offset(page, offset))
	return err
}

func (m *MemStore) WriteTo(page int64, offset int, buf []byte, bufOff int, length int) error {
	if m.readOnly {
		return ErrReadOnly
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alloc.isOnStorage(page) {
		return ErrOutOfRange
	}
	_, err := m.file.WriteAt(buf[bufOff:bufOff+length], m.offset(page, offset))
	return err
}

func (m *MemStore) TryAllocatePage() (int64, bool) {
	if m.readOnly {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alloc.tryAllocate()
}

func (m *MemStore) FreePage(page int64) error {
	if m.readOnly {
		return ErrReadOnly
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alloc.isAllocated(page) {
		return ErrPageNotAllocated
	}
	m.alloc.release(page)
	return nil
}

func (m *MemStore) TryInflate(additionalPages int64, progress ProgressFunc, cancel <-chan struct{}) (int64, error) {
	if m.readOnly {
		return 0, ErrReadOnly
	}
	if m.fixed {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	const chunk = 256
	var added int64
	for added < additionalPages {
		select {
		case <-cancel:
			return added, nil
		default:
		}
		step := additionalPages - added
		if step > chunk {
			step = chunk
		}
		added += m.alloc.inflate(step)
		if progress != nil {
			progress(added)
		}
	}
	return added, nil
}

var _ PageStorage = (*MemStore)(nil)
