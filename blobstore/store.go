package blobstore

import (
	"sync"

	"github.com/zeebo/blake3"

	"github.com/pagetree/pagetree/device"
	"github.com/pagetree/pagetree/internal/errs"
)

// freeSlot is one entry of the in-memory free list the design allows as an
// alternative to pure bump allocation ("Allocated via bump allocation or a
// free list").
type freeSlot struct {
	offset    int64
	allocated int64
}

// Store is the Blob Store over a raw Device. It allocates in pageSize-sized
// increments (growing the device via repeated Grow calls, since Device.Grow
// only ever extends by exactly one page) and rounds every allocation up to
// the next page boundary, which is what creates the grow-in-place slack
// overwrite exploits.
type Store struct {
	mu       sync.Mutex
	dev      device.Device
	pageSize int
	free     []freeSlot
}

func New(dev device.Device, pageSize int) *Store {
	return &Store{dev: dev, pageSize: pageSize}
}

func roundUp(n, multiple int64) int64 {
	if n%multiple == 0 {
		return n
	}
	return (n/multiple + 1) * multiple
}

// Allocate writes data as a new blob and returns its offset.
func (s *Store) Allocate(data []byte, flags uint32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	need := int64(HeaderSize + len(data))
	allocated := roundUp(need, int64(s.pageSize))

	offset, err := s.takeFreeLocked(allocated)
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		offset, err = s.growLocked(allocated)
		if err != nil {
			return 0, err
		}
	}

	buf := make([]byte, allocated)
	encodeHeader(buf, Header{Self: offset, Allocated: allocated, Real: int64(len(data)), Flags: flags})
	copy(buf[HeaderSize:], data)
	if err := s.dev.WriteAt(offset, buf); err != nil {
		return 0, errs.Wrap(errs.StatusIOError, "blobstore: allocate write", err)
	}
	return offset, nil
}

// Read returns the current payload stored at offset.
func (s *Store) Read(offset int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hdr, err := s.readHeaderLocked(offset)
	if err != nil {
		return nil, err
	}
	if hdr.Free() {
		return nil, errs.Wrap(errs.StatusIOError, "blobstore: read of freed blob", nil)
	}
	buf := make([]byte, hdr.Real)
	if hdr.Real > 0 {
		if err := s.dev.ReadAt(offset+HeaderSize, buf); err != nil {
			return nil, errs.Wrap(errs.StatusIOError, "blobstore: read payload", err)
		}
	}
	return buf, nil
}

// Overwrite replaces the blob at offset with data, growing in place when the
// existing allocation has enough slack and relocating (allocate + free)
// otherwise. Callers — in particular a cursor coupled to the old offset —
// must update any reference to the returned offset, per §4.3.
func (s *Store) Overwrite(offset int64, data []byte, flags uint32) (newOffset int64, err error) {
	s.mu.Lock()
	hdr, err := s.readHeaderLocked(offset)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if int64(HeaderSize+len(data)) <= hdr.Allocated {
		if err := s.growInPlace(offset, hdr, data, flags); err != nil {
			return 0, err
		}
		return offset, nil
	}

	newOffset, err = s.Allocate(data, flags)
	if err != nil {
		return 0, err
	}
	if err := s.Free(offset); err != nil {
		return 0, err
	}
	return newOffset, nil
}

// growInPlace rewrites offset's payload without relocating, guarded by an
// in-memory-only blake3 digest comparing what was meant to land with what
// the device reports back — never persisted, since §6.1's blob header has
// no checksum field to spend it on.
func (s *Store) growInPlace(offset int64, hdr Header, data []byte, flags uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := blake3.Sum256(data)

	buf := make([]byte, HeaderSize+len(data))
	encodeHeader(buf, Header{Self: offset, Allocated: hdr.Allocated, Real: int64(len(data)), Flags: flags})
	copy(buf[HeaderSize:], data)
	if err := s.dev.WriteAt(offset, buf); err != nil {
		return errs.Wrap(errs.StatusIOError, "blobstore: grow-in-place write", err)
	}

	verify := make([]byte, len(data))
	if len(data) > 0 {
		if err := s.dev.ReadAt(offset+HeaderSize, verify); err != nil {
			return errs.Wrap(errs.StatusIOError, "blobstore: grow-in-place verify read", err)
		}
	}
	if got := blake3.Sum256(verify); got != want {
		return errs.Wrap(errs.StatusIOError, "blobstore: grow-in-place payload mismatch after write", nil)
	}
	return nil
}

// Free tombstones the blob at offset and returns its allocation to the free
// list for reuse by a later Allocate.
func (s *Store) Free(offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hdr, err := s.readHeaderLocked(offset)
	if err != nil {
		return err
	}
	if hdr.Free() {
		return nil
	}
	hdr.Flags |= FlagFree
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, hdr)
	if err := s.dev.WriteAt(offset, buf); err != nil {
		return errs.Wrap(errs.StatusIOError, "blobstore: free write", err)
	}
	s.free = append(s.free, freeSlot{offset: offset, allocated: hdr.Allocated})
	return nil
}

func (s *Store) readHeaderLocked(offset int64) (Header, error) {
	buf := make([]byte, HeaderSize)
	if err := s.dev.ReadAt(offset, buf); err != nil {
		return Header{}, errs.Wrap(errs.StatusIOError, "blobstore: read header", err)
	}
	return decodeHeader(buf), nil
}

// takeFreeLocked returns a free-list offset with enough capacity (first
// fit), or -1 if none qualifies. Must be called with s.mu held.
func (s *Store) takeFreeLocked(need int64) (int64, error) {
	for i, f := range s.free {
		if f.allocated >= need {
			s.free = append(s.free[:i], s.free[i+1:]...)
			return f.offset, nil
		}
	}
	return -1, nil
}

// growLocked extends the device by whole pages until it has room for n
// contiguous bytes starting at the returned offset. Must be called with
// s.mu held.
func (s *Store) growLocked(n int64) (int64, error) {
	pages := n / int64(s.pageSize)
	if n%int64(s.pageSize) != 0 {
		pages++
	}
	var start int64 = -1
	for i := int64(0); i < pages; i++ {
		offset, err := s.dev.Grow(s.pageSize)
		if err != nil {
			return 0, errs.Wrap(errs.StatusOutOfMemory, "blobstore: grow device", err)
		}
		if start == -1 {
			start = offset
		}
	}
	return start, nil
}
