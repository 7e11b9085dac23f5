// Package storage implements the fixed-size page-addressable block device
// that backs a btree.Tree. The tree never touches a file, a byte slice, or a
// mutex directly; it only ever talks to the small PageStorage contract
// defined here, so any storage medium that can hand back fixed-size pages on
// demand can sit underneath it.
package storage

import "errors"

// Common errors returned by PageStorage implementations. Implementations may
// wrap these with errors.Is-compatible context; callers should not assume the
// error value is exactly one of these.
var (
	// ErrOutOfRange is returned when a page index is negative or does not
	// fall within [0, PageCapacity()).
	ErrOutOfRange = errors.New("storage: page index out of range")

	// ErrPageNotAllocated is returned when an operation targets a page slot
	// that PageCapacity() covers but that has never been allocated (or has
	// since been freed).
	ErrPageNotAllocated = errors.New("storage: page not allocated")

	// ErrReadOnly is returned by any mutating call on a read-only storage.
	ErrReadOnly = errors.New("storage: storage is read-only")

	// ErrCapacityFixed names the condition of a storage whose capacity cannot
	// grow past what it was created with. Neither backend in this package
	// returns it: their TryInflate reports zero pages added and a nil error
	// when the capacity is fixed.
	ErrCapacityFixed = errors.New("storage: capacity is fixed")
)

// ProgressFunc is invoked periodically during TryInflate with the number of
// pages newly available so far, so a caller can report progress on slow
// growth (e.g. a file being extended on spinning disk).
type ProgressFunc func(pagesSoFar int64)

// PageStorage is a block-device-like abstraction over an indexable array of
// fixed-size byte pages. It is the only way a btree.Tree touches durable
// storage: every structural change the tree makes is a sequence of reads,
// writes, allocations, and (on merge) frees against one of these.
//
// Implementations are not required to be safe for concurrent mutation; the
// tree already serializes all structural access behind its own lock (see
// pkg/btree). Concurrent reads against a read-only storage, from multiple
// Readers, must be safe.
type PageStorage interface {
	// PageSize returns the fixed number of bytes in every page.
	PageSize() int

	// PageCapacity returns the number of page slots currently addressable,
	// whether or not each slot has been allocated yet.
	PageCapacity() int64

	// AllocatedPageCount returns how many of those slots are currently
	// allocated (holding live data).
	AllocatedPageCount() int64

	// IsCapacityFixed reports whether PageCapacity can ever grow via
	// TryInflate.
	IsCapacityFixed() bool

	// IsReadOnly reports whether mutating calls are rejected.
	IsReadOnly() bool

	// IsPageOnStorage reports whether i falls within [0, PageCapacity()).
	IsPageOnStorage(i int64) bool

	// IsPageAllocated reports whether i is on storage and currently holds an
	// allocated page (as opposed to being free or never allocated).
	IsPageAllocated(i int64) bool

	// ReadFrom copies length bytes starting at offset within page `page`
	// into buf[bufOff:bufOff+length].
	ReadFrom(page int64, offset int, buf []byte, bufOff int, length int) error

	// WriteTo copies length bytes from buf[bufOff:bufOff+length] into page
	// `page` starting at offset.
	WriteTo(page int64, offset int, buf []byte, bufOff int, length int) error

	// TryAllocatePage reserves a free page and returns its index. It returns
	// ok=false (not an error) when no page could be allocated, which the
	// tree treats as a recoverable allocation failure (§7).
	TryAllocatePage() (page int64, ok bool)

	// FreePage releases a previously allocated page back to the free pool.
	// Its contents are no longer guaranteed to be readable afterward.
	FreePage(page int64) error

	// TryInflate attempts to grow PageCapacity by up to additionalPages,
	// reporting incremental progress through progress (which may be nil)
	// and checking cancel between chunks. It returns the number of pages
	// actually added, which may be less than requested (including zero) and
	// is never an error condition by itself.
	TryInflate(additionalPages int64, progress ProgressFunc, cancel <-chan struct{}) (int64, error)
}
