package storage

import (
	"errors"
	"os"
	"sync"

	"github.com/ncw/directio"
)

// ErrPageSizeNotAligned is returned by OpenDirectFileStore when pageSize is
// not a multiple of the platform's required O_DIRECT alignment.
var ErrPageSizeNotAligned = errors.New("storage: page size is not a multiple of directio.AlignSize")

// FileStore is a PageStorage backed by an *os.File: pages are fixed-size
// records written with WriteAt/ReadAt at page*pageSize offsets, the same
// addressing scheme the teacher's storage.Page used for its single 4KB page
// size, generalized here to an arbitrary page size chosen at Open time.
//
// Reopening an existing file recovers PageCapacity from the file's length,
// but not which of those pages are free — a fresh FileStore has no free list
// across restarts and treats every page within the recovered capacity as
// allocated. This is consistent with the package's stated non-goals
// (no transactional durability across crashes, no deflation).
type FileStore struct {
	mu       sync.Mutex
	f        *os.File
	pageSize int
	readOnly bool
	fixed    bool
	alloc    *freeList

	direct     bool
	alignedBuf []byte
}

// OpenFileStore opens (creating if necessary) a plain file-backed page
// storage. If readOnly is true, all mutating calls fail with ErrReadOnly.
func OpenFileStore(path string, pageSize int, readOnly bool) (*FileStore, error) {
	flag := os.O_CREATE | os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o666)
	if err != nil {
		return nil, err
	}
	return newFileStore(f, pageSize, readOnly, false)
}

// OpenDirectFileStore is like OpenFileStore but issues page-aligned O_DIRECT
// I/O through github.com/ncw/directio, bypassing the page cache. pageSize
// must be a multiple of directio.AlignSize.
func OpenDirectFileStore(path string, pageSize int, readOnly bool) (*FileStore, error) {
	if pageSize%directio.AlignSize != 0 {
		return nil, ErrPageSizeNotAligned
	}
	flag := os.O_CREATE | os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := directio.OpenFile(path, flag, 0o666)
	if err != nil {
		return nil, err
	}
	fs, err := newFileStore(f, pageSize, readOnly, true)
	if err != nil {
		return nil, err
	}
	fs.alignedBuf = directio.AlignedBlock(pageSize)
	return fs, nil
}

func newFileStore(f *os.File, pageSize int, readOnly bool, direct bool) (*FileStore, error) {
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	existing := st.Size() / int64(pageSize)
	fs := &FileStore{
		f:        f,
		pageSize: pageSize,
		readOnly: readOnly,
		direct:   direct,
		alloc:    newFreeList(),
	}
	fs.alloc.capacity = existing
	fs.alloc.allocated = existing
	return fs, nil
}

// SetCapacityFixed pins PageCapacity so TryInflate becomes a permanent
// no-op; used by tests exercising the "allocation always fails" properties.
func (fs *FileStore) SetCapacityFixed(fixed bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fixed = fixed
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Close()
}

func (fs *FileStore) PageSize() int { return fs.pageSize }

func (fs *FileStore) PageCapacity() int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.alloc.capacity
}

func (fs *FileStore) AllocatedPageCount() int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.alloc.allocatedCount()
}

func (fs *FileStore) IsCapacityFixed() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.fixed
}

func (fs *FileStore) IsReadOnly() bool { return fs.readOnly }

func (fs *FileStore) IsPageOnStorage(i int64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.alloc.isOnStorage(i)
}

func (fs *FileStore) IsPageAllocated(i int64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.alloc.isAllocated(i)
}

func (fs *FileStore) pageOffset(page int64) int64 {
	return page * int64(fs.pageSize)
}

// readPageAligned reads the whole page into fs.alignedBuf, for the O_DIRECT
// path, which requires aligned whole-block I/O.
func (fs *FileStore) readPageAligned(page int64) error {
	_, err := fs.f.ReadAt(fs.alignedBuf, fs.pageOffset(page))
	return err
}

func (fs *FileStore) writePageAligned(page int64) error {
	_, err := fs.f.WriteAt(fs.alignedBuf, fs.pageOffset(page))
	return err
}

func (fs *FileStore) ReadFrom(page int64, offset int, buf []byte, bufOff int, length int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.alloc.isOnStorage(page) {
		return ErrOutOfRange
	}
	if fs.direct {
		if err := fs.readPageAligned(page); err != nil {
			return err
		}
		copy(buf[bufOff:bufOff+length], fs.alignedBuf[offset:offset+length])
		return nil
	}
	_, err := fs.f.ReadAt(buf[bufOff:bufOff+length], fs.pageOffset(page)+int64(offset))
	return err
}

func (fs *FileStore) WriteTo(page int64, offset int, buf []byte, bufOff int, length int) error {
	if fs.readOnly {
		return ErrReadOnly
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.alloc.isOnStorage(page) {
		return ErrOutOfRange
	}
	if fs.direct {
		// O_DIRECT requires whole, aligned blocks: read-modify-write the
		// page so a partial write still lands correctly.
		if err := fs.readPageAligned(page); err != nil {
			return err
		}
		copy(fs.alignedBuf[offset:offset+length], buf[bufOff:bufOff+length])
		return fs.writePageAligned(page)
	}
	_, err := fs.f.WriteAt(buf[bufOff:bufOff+length], fs.pageOffset(page)+int64(offset))
	return err
}

func (fs *FileStore) TryAllocatePage() (int64, bool) {
	if fs.readOnly {
		return 0, false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.alloc.tryAllocate()
}

func (fs *FileStore) FreePage(page int64) error {
	if fs.readOnly {
		return ErrReadOnly
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.alloc.isAllocated(page) {
		return ErrPageNotAllocated
	}
	fs.alloc.release(page)
	return nil
}

func (fs *FileStore) TryInflate(additionalPages int64, progress ProgressFunc, cancel <-chan struct{}) (int64, error) {
	if fs.readOnly {
		return 0, ErrReadOnly
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.fixed {
		return 0, nil
	}

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
		// Extend the file so reads within the new capacity see zeroed
		// pages rather than failing with a short read.
		newLen := fs.pageOffset(fs.alloc.capacity + step)
		if err := fs.f.Truncate(newLen); err != nil {
			return added, err
		}
		added += fs.alloc.inflate(step)
		if progress != nil {
			progress(added)
		}
	}
	return added, nil
}

var _ PageStorage = (*FileStore)(nil)
