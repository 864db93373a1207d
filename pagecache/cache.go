// Package pagecache implements the design's Page Cache component: a
// fetch-or-load map from device offset to live *page.Page, pin/unpin
// protection against eviction, and a flush path for dirty pages. Grounded
// on the teacher's BufferPool (ShubhamNegi4-DaemonDB/bplustree/buffer_pool.go
// and storage_engine/bufferpool/bufferpool.go): same pin-respecting
// LRU-eviction shape, generalized from page-ID keys to device offsets and
// from a bespoke access-order slice to an access-order slice fed eviction
// hints by a ristretto admission/frequency cache, per SPEC_FULL.md's domain
// stack.
package pagecache

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/pagetree/pagetree/allocator"
	"github.com/pagetree/pagetree/device"
	"github.com/pagetree/pagetree/page"
)

// Cache is the offset → *page.Page map described in §4.1. Pages with a pin
// count > 0 are never evicted; in CacheStrict mode nothing is ever evicted
// and exhausting Capacity fails with ErrLimitsReached instead.
type Cache struct {
	mu sync.Mutex

	dev      device.Device
	pageSize int
	capacity int // max resident pages; 0 means unbounded
	strict   bool

	pages       map[int64]*page.Page
	accessOrder []int64 // oldest first
	handles     map[int64]allocator.Handle

	hint  *ristretto.Cache[int64, struct{}] // frequency/admission hint, see evictOne
	alloc *allocator.Allocator              // tracks resident page buffers
}

// ErrLimitsReached is returned by Fetch/Alloc when CacheStrict is set and
// the cache is already at Capacity.
var ErrLimitsReached = fmt.Errorf("pagecache: limits reached")

// Config bundles the construction parameters for a Cache.
type Config struct {
	Device   device.Device
	PageSize int
	Capacity int // 0 = unbounded (only Device/OS memory limits apply)
	Strict   bool

	// TrackAllocations enables file/line leak reporting on the cache's
	// internal Allocator (see AllocStats/ReportLeaks). Off by default since
	// per-allocation bookkeeping is pure overhead once a build is trusted.
	TrackAllocations bool
}

// New builds a Cache over dev. The ristretto instance it wires in is purely
// an eviction-order *hint*: the pin-respecting authoritative state always
// lives in Cache.pages, so Fetch's ordering guarantee (same live object for
// the same offset) never depends on ristretto's own, independently-timed
// eviction decisions.
func New(cfg Config) (*Cache, error) {
	numCounters := int64(cfg.Capacity) * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	maxCost := int64(cfg.Capacity)
	if maxCost <= 0 {
		maxCost = 1 << 20
	}

	hint, err := ristretto.NewCache(&ristretto.Config[int64, struct{}]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		KeyToHash: func(key int64) (uint64, uint64) {
			var buf [8]byte
			for i := 0; i < 8; i++ {
				buf[i] = byte(key >> (8 * i))
			}
			return xxhash.Sum64(buf[:]), 0
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pagecache: ristretto: %w", err)
	}

	return &Cache{
		dev:      cfg.Device,
		pageSize: cfg.PageSize,
		capacity: cfg.Capacity,
		strict:   cfg.Strict,
		pages:    make(map[int64]*page.Page),
		handles:  make(map[int64]allocator.Handle),
		hint:     hint,
		alloc:    allocator.New(cfg.TrackAllocations),
	}, nil
}

// AllocStats reports the cache's resident-page-buffer accounting, tracked by
// the design's §9 debug-allocator hook (allocator.Allocator).
func (c *Cache) AllocStats() allocator.Stats {
	return c.alloc.Stats()
}

// ReportLeaks returns a leak report if the cache was built with
// TrackAllocations, else "".
func (c *Cache) ReportLeaks() string {
	return c.alloc.ReportLeaks()
}

// Close releases the cache's background resources. The underlying Device
// is not closed — callers opened it, callers close it.
func (c *Cache) Close() {
	c.hint.Close()
}

// Fetch returns the live Page for offset, loading it from the device on a
// cache miss. Concurrent calls for the same offset within one goroutine
// sequence (the core is single-threaded per §5) always observe the same
// *page.Page, satisfying the cache's ordering guarantee.
func (c *Cache) Fetch(offset int64, typ page.Type) (*page.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pages[offset]; ok {
		c.touch(offset)
		c.hint.Get(offset)
		p.Pin()
		return p, nil
	}

	buf := make([]byte, c.pageSize)
	if err := c.dev.ReadAt(offset, buf); err != nil {
		return nil, fmt.Errorf("pagecache: fetch %d: %w", offset, err)
	}

	p := page.New(offset, typ, c.pageSize)
	p.MutatePayload(func(dst []byte) { copy(dst, buf) })
	p.ClearDirty() // freshly loaded from disk, matches on-disk image
	p.SetType(typ)

	if err := c.admit(p); err != nil {
		return nil, err
	}
	p.Pin()
	return p, nil
}

// Alloc grows the device by one page and returns a new, dirty, pinned Page
// of the given type bound to the new offset. Matches the teacher's
// BufferPool.NewPage (storage_engine/bufferpool/bufferpool.go): allocate on
// the device first, then register the blank in-memory page.
func (c *Cache) Alloc(typ page.Type) (*page.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.strict && c.capacity > 0 && len(c.pages) >= c.capacity {
		return nil, ErrLimitsReached
	}

	offset, err := c.dev.Grow(c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("pagecache: alloc: %w", err)
	}

	p := page.New(offset, typ, c.pageSize)
	p.MutatePayload(func(buf []byte) { buf[0] = byte(typ) })

	if err := c.admit(p); err != nil {
		// The device already grew; the offset is simply never registered
		// in the cache. A free-list-aware allocator would reclaim it — see
		// blobstore for that policy on the blob side.
		return nil, err
	}
	p.Pin()
	return p, nil
}

// Free removes p from the cache and lets the device/free-list layer above
// reclaim its offset. Free does not zero the on-disk page; callers that
// want that (e.g. §9 open question 1, zeroing a retired root's sibling
// links) do it before calling Free.
func (c *Cache) Free(p *page.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(p.Offset())
}

func (c *Cache) Pin(p *page.Page)   { p.Pin() }
func (c *Cache) Unpin(p *page.Page) { p.Unpin() }

// FlushAll writes every dirty page to the device, in the map's natural
// (unordered) iteration order — the design places no ordering requirement
// on flush since there is no WAL to serialize against (§4.5).
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	for offset, p := range c.pages {
		if !p.Dirty() {
			continue
		}
		if err := c.writeBack(p); err != nil {
			return fmt.Errorf("pagecache: flush %d: %w", offset, err)
		}
	}
	return c.dev.Sync()
}

func (c *Cache) writeBack(p *page.Page) error {
	if err := c.dev.WriteAt(p.Offset(), p.Payload()); err != nil {
		return err
	}
	p.ClearDirty()
	return nil
}

// admit registers p in the authoritative map, evicting if at capacity and
// not strict. Must be called with c.mu held.
func (c *Cache) admit(p *page.Page) error {
	if c.capacity > 0 && len(c.pages) >= c.capacity {
		if c.strict {
			return ErrLimitsReached
		}
		if err := c.evictOne(); err != nil {
			return err
		}
	}

	c.pages[p.Offset()] = p
	c.handles[p.Offset()] = c.alloc.Alloc(c.pageSize)
	c.hint.Set(p.Offset(), struct{}{}, 1)
	c.touch(p.Offset())
	return nil
}

// evictOne evicts one unpinned page, writing it back first if dirty.
// Candidate order: ristretto's hint cache is consulted so that an offset it
// has already forgotten (i.e. cold under its TinyLFU policy) is preferred
// over the raw LRU head — a page that's merely old but still frequently
// re-fetched stays resident slightly longer than pure LRU would keep it.
func (c *Cache) evictOne() error {
	coldIdx, fallbackIdx := -1, -1
	for i, offset := range c.accessOrder {
		p, ok := c.pages[offset]
		if !ok || p.Pinned() {
			continue
		}
		if fallbackIdx == -1 {
			fallbackIdx = i // oldest unpinned page, used if nothing looks cold
		}
		if _, stillHot := c.hint.Get(offset); !stillHot {
			coldIdx = i
			break
		}
	}

	victim := coldIdx
	if victim == -1 {
		victim = fallbackIdx
	}
	if victim == -1 {
		return ErrLimitsReached
	}

	return c.evict(c.accessOrder[victim])
}

// evict removes offset from the cache unconditionally (writing back first
// if dirty). Must be called with c.mu held.
func (c *Cache) evict(offset int64) error {
	p, ok := c.pages[offset]
	if !ok {
		return nil
	}
	if p.Dirty() {
		if err := c.writeBack(p); err != nil {
			return err
		}
	}
	delete(c.pages, offset)
	if h, ok := c.handles[offset]; ok {
		c.alloc.Free(h, c.pageSize)
		delete(c.handles, offset)
	}
	c.hint.Del(offset)
	for i, o := range c.accessOrder {
		if o == offset {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Cache) touch(offset int64) {
	for i, o := range c.accessOrder {
		if o == offset {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, offset)
}

// Resident reports how many pages are currently cached, for tests and
// diagnostics.
func (c *Cache) Resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}
