package pagecache

import (
	"testing"

	"github.com/pagetree/pagetree/device"
	"github.com/pagetree/pagetree/page"
)

const testPageSize = 256

func newTestCache(t *testing.T, capacity int, strict bool) *Cache {
	t.Helper()
	dev := device.NewMemDevice()
	t.Cleanup(func() { dev.Close() })
	c, err := New(Config{Device: dev, PageSize: testPageSize, Capacity: capacity, Strict: strict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestAllocFetchRoundTrip(t *testing.T) {
	c := newTestCache(t, 0, false)

	p, err := c.Alloc(page.TypeLeaf)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	p.MutatePayload(func(buf []byte) { copy(buf, []byte("hello")) })
	c.Unpin(p)

	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	fetched, err := c.Fetch(p.Offset(), page.TypeLeaf)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(fetched.Payload()[:5]) != "hello" {
		t.Fatalf("unexpected payload: %q", fetched.Payload()[:5])
	}
	c.Unpin(fetched)
}

func TestAllocWritesTypeTagByte(t *testing.T) {
	c := newTestCache(t, 0, false)

	p, err := c.Alloc(page.TypeBlob)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if got := p.Payload()[0]; got != byte(page.TypeBlob) {
		t.Fatalf("expected type tag %d at payload offset 0, got %d", page.TypeBlob, got)
	}
	c.Unpin(p)
}

func TestFetchReturnsSameObjectForConcurrentOffset(t *testing.T) {
	c := newTestCache(t, 0, false)
	p, _ := c.Alloc(page.TypeLeaf)
	c.Unpin(p)

	a, err := c.Fetch(p.Offset(), page.TypeLeaf)
	if err != nil {
		t.Fatalf("Fetch a: %v", err)
	}
	b, err := c.Fetch(p.Offset(), page.TypeLeaf)
	if err != nil {
		t.Fatalf("Fetch b: %v", err)
	}
	if a != b {
		t.Fatalf("expected the same live Page object for repeated fetches of one offset")
	}
	c.Unpin(a)
	c.Unpin(b)
	c.Unpin(p)
}

func TestPinnedPageSurvivesEviction(t *testing.T) {
	c := newTestCache(t, 2, false)

	p1, _ := c.Alloc(page.TypeLeaf) // stays pinned
	p2, _ := c.Alloc(page.TypeLeaf)
	c.Unpin(p2)

	// Allocating a third page must evict p2 (unpinned), never p1 (pinned).
	p3, err := c.Alloc(page.TypeLeaf)
	if err != nil {
		t.Fatalf("Alloc p3: %v", err)
	}
	c.Unpin(p3)

	if c.Resident() > 2 {
		t.Fatalf("expected capacity to be respected, resident=%d", c.Resident())
	}

	// p1 must still be reachable and pinned.
	again, err := c.Fetch(p1.Offset(), page.TypeLeaf)
	if err != nil {
		t.Fatalf("Fetch p1: %v", err)
	}
	if again != p1 {
		t.Fatalf("pinned page p1 was evicted")
	}
	c.Unpin(again)
	c.Unpin(p1)
}

func TestCacheStrictFailsInsteadOfEvicting(t *testing.T) {
	c := newTestCache(t, 1, true)

	p1, err := c.Alloc(page.TypeLeaf)
	if err != nil {
		t.Fatalf("Alloc p1: %v", err)
	}
	c.Unpin(p1)

	_, err = c.Alloc(page.TypeLeaf)
	if err != ErrLimitsReached {
		t.Fatalf("expected ErrLimitsReached in strict mode, got %v", err)
	}
}

func TestFlushAllPersistsDirtyPages(t *testing.T) {
	dev := device.NewMemDevice()
	defer dev.Close()

	c, err := New(Config{Device: dev, PageSize: testPageSize})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	p, _ := c.Alloc(page.TypeLeaf)
	offset := p.Offset()
	p.MutatePayload(func(buf []byte) { copy(buf, []byte("durable")) })
	c.Unpin(p)

	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if p.Dirty() {
		t.Fatalf("expected page to be clean after flush")
	}

	raw := make([]byte, testPageSize)
	if err := dev.ReadAt(offset, raw); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(raw[:7]) != "durable" {
		t.Fatalf("flush did not persist page contents, got %q", raw[:7])
	}
}

func TestAllocStatsTracksResidentPageBytes(t *testing.T) {
	c := newTestCache(t, 0, false)

	p1, err := c.Alloc(page.TypeLeaf)
	if err != nil {
		t.Fatalf("Alloc p1: %v", err)
	}
	c.Unpin(p1)
	p2, err := c.Alloc(page.TypeLeaf)
	if err != nil {
		t.Fatalf("Alloc p2: %v", err)
	}
	c.Unpin(p2)

	stats := c.AllocStats()
	if stats.BytesLive != int64(2*testPageSize) {
		t.Fatalf("expected %d live bytes, got %d", 2*testPageSize, stats.BytesLive)
	}

	c.Free(p1)
	stats = c.AllocStats()
	if stats.BytesLive != int64(testPageSize) {
		t.Fatalf("expected %d live bytes after freeing one page, got %d", testPageSize, stats.BytesLive)
	}
}
