// Package device implements the paged storage substrate's byte-addressable
// backing store: a file-backed device and an in-memory device, both
// satisfying the same Device capability so the rest of the core never knows
// which one it is talking to. Grounded on the teacher's Pager interface
// (ShubhamNegi4-DaemonDB/bplustree/struct.go) and its two implementations,
// OnDiskPager and InMemoryPager (bplustree/disk_pager.go,
// bplustree/inmemory_pager.go), generalized from page-ID addressing to raw
// byte-offset addressing per the design's "fixed-size pages identified by a
// file offset" model.
package device

import "errors"

// ErrClosed is returned by any operation on a Device after Close.
var ErrClosed = errors.New("device: closed")

// Device is the byte-addressed backing store a Page is read from and
// written to. Implementations are file-backed (Open) or in-memory
// (NewMemDevice); both grow monotonically via Grow and never renumber an
// offset once handed out, since an offset doubles as a page's identity.
type Device interface {
	// ReadAt fills buf from the device starting at offset. Short reads at
	// the growth frontier are zero-padded, matching the teacher pagers'
	// "partial read pads with zeros" behavior rather than erroring, since a
	// freshly allocated page has no prior on-disk image.
	ReadAt(offset int64, buf []byte) error

	// WriteAt writes buf to the device starting at offset. offset+len(buf)
	// must not exceed the device's current frontier (use Grow first).
	WriteAt(offset int64, buf []byte) error

	// Grow extends the device's frontier by exactly one page of pageSize
	// bytes and returns the offset of the new page. This is the device-level
	// half of page allocation; the cache layer decides whether an offset
	// also needs removing from a free list first.
	Grow(pageSize int) (int64, error)

	// Size returns the current frontier in bytes.
	Size() (int64, error)

	// Sync flushes pending writes to stable storage. A no-op for MemDevice.
	Sync() error

	// Close releases underlying resources (file handle, mapping). Further
	// calls to any method return ErrClosed.
	Close() error
}
