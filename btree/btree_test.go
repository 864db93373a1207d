package btree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/pagetree/pagetree/device"
	"github.com/pagetree/pagetree/internal/errs"
	"github.com/pagetree/pagetree/node"
	"github.com/pagetree/pagetree/pagecache"
	"github.com/pagetree/pagetree/record"
)

const testPageSize = 256

func newTestTree(t *testing.T, maxKeys int) *Tree {
	t.Helper()
	dev := device.NewMemDevice()
	// Offset 0 is the database header page, and Tree treats a root offset of
	// 0 as an empty tree, so reserve it before any node page is allocated.
	if _, err := dev.Grow(testPageSize); err != nil {
		t.Fatalf("reserve header page: %v", err)
	}
	cache, err := pagecache.New(pagecache.Config{Device: dev, PageSize: testPageSize})
	if err != nil {
		t.Fatalf("pagecache.New: %v", err)
	}
	layout := node.NewLayout(testPageSize, 8, maxKeys)
	return New(cache, layout, record.Default(), 0)
}

func keyN(n int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

func ridFor(rec []byte) (byte, [8]byte) { return record.EncodeInline(rec) }

func TestInsertAndFindRoundTrip(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := 0; i < 20; i++ {
		flags, rid := ridFor([]byte(fmt.Sprintf("v%d", i)))
		if err := tree.Insert(keyN(i), flags, rid, false, nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := 0; i < 20; i++ {
		off, slot, exact, err := tree.Find(keyN(i))
		if err != nil || !exact {
			t.Fatalf("find %d: exact=%v err=%v", i, exact, err)
		}
		_ = off
		_ = slot
	}
}

func TestInsertDuplicateRejectedWithoutOverwrite(t *testing.T) {
	tree := newTestTree(t, 4)
	flags, rid := ridFor([]byte("a"))
	if err := tree.Insert(keyN(1), flags, rid, false, nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := tree.Insert(keyN(1), flags, rid, false, nil)
	if !errors.Is(err, errs.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestInsertOverwriteReplacesRecord(t *testing.T) {
	tree := newTestTree(t, 4)
	flagsA, ridA := ridFor([]byte("a"))
	flagsB, ridB := ridFor([]byte("bb"))
	if err := tree.Insert(keyN(1), flagsA, ridA, false, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Insert(keyN(1), flagsB, ridB, true, nil); err != nil {
		t.Fatalf("overwrite insert: %v", err)
	}

	off, slot, exact, err := tree.Find(keyN(1))
	if err != nil || !exact {
		t.Fatalf("find after overwrite: exact=%v err=%v", exact, err)
	}
	p, err := tree.cache.Fetch(off, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer tree.cache.Unpin(p)
	n := node.View(p.Payload(), tree.layout)
	got := record.DecodeInline(n.FlagsAt(slot), n.RidAt(slot))
	if string(got) != "bb" {
		t.Fatalf("expected overwritten value bb, got %q", got)
	}
}

func TestInsertCausesSplitAndTreeGrowsAboveRoot(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := 0; i < 30; i++ {
		flags, rid := ridFor(keyN(i))
		if err := tree.Insert(keyN(i), flags, rid, false, nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	root, err := tree.cache.Fetch(tree.Root(), 0)
	if err != nil {
		t.Fatalf("fetch root: %v", err)
	}
	defer tree.cache.Unpin(root)
	rn := node.View(root.Payload(), tree.layout)
	if rn.IsLeaf() {
		t.Fatalf("expected root to have split into an internal node after 30 inserts with MaxKeys=4")
	}
}

func TestEraseRemovesKey(t *testing.T) {
	tree := newTestTree(t, 4)
	for i := 0; i < 10; i++ {
		flags, rid := ridFor(keyN(i))
		if err := tree.Insert(keyN(i), flags, rid, false, nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := tree.Erase(keyN(5), nil); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if _, _, exact, err := tree.Find(keyN(5)); err != nil || exact {
		t.Fatalf("expected no exact match for key 5 after erase, got exact=%v err=%v", exact, err)
	}
	for _, i := range []int{0, 1, 4, 6, 9} {
		if _, _, exact, err := tree.Find(keyN(i)); err != nil || !exact {
			t.Fatalf("key %d should survive erase of a different key", i)
		}
	}
}

func TestEraseMissingKeyFails(t *testing.T) {
	tree := newTestTree(t, 4)
	if err := tree.Erase(keyN(1), nil); !errors.Is(err, errs.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound on empty tree, got %v", err)
	}
}

func TestFindNearGreaterEqualOnMiss(t *testing.T) {
	tree := newTestTree(t, 4)
	for _, i := range []int{0, 2, 4, 6, 8} {
		flags, rid := ridFor(keyN(i))
		if err := tree.Insert(keyN(i), flags, rid, false, nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	off, slot, err := tree.FindNear(keyN(3), NearGreaterEqual)
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	p, err := tree.cache.Fetch(off, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer tree.cache.Unpin(p)
	n := node.View(p.Payload(), tree.layout)
	if binary.BigEndian.Uint64(n.KeyAt(slot)) != 4 {
		t.Fatalf("expected next-greater key 4, got %d", binary.BigEndian.Uint64(n.KeyAt(slot)))
	}
}

func TestEraseFreesBlobViaCallback(t *testing.T) {
	tree := newTestTree(t, 4)
	var freed []int64
	tree.FreeBlob = func(offset int64) { freed = append(freed, offset) }

	rid := record.EncodeBlobRid(4096)
	if err := tree.Insert(keyN(1), 0, rid, false, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tree.Erase(keyN(1), nil); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if len(freed) != 1 || freed[0] != 4096 {
		t.Fatalf("expected FreeBlob(4096) once, got %v", freed)
	}
}

func TestAscendingInsertsPreserveSortedLeafChain(t *testing.T) {
	tree := newTestTree(t, 4)
	const n = 60
	for i := 0; i < n; i++ {
		flags, rid := ridFor(keyN(i))
		if err := tree.Insert(keyN(i), flags, rid, false, nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// Walk the leaf chain from the leftmost leaf and confirm ascending order.
	offset := tree.Root()
	p, nd, err := tree.fetchNode(offset)
	if err != nil {
		t.Fatalf("fetchNode: %v", err)
	}
	for !nd.IsLeaf() {
		next := nd.PtrLeft()
		tree.cache.Unpin(p)
		p, nd, err = tree.fetchNode(next)
		if err != nil {
			t.Fatalf("fetchNode: %v", err)
		}
	}

	var seen []uint64
	for {
		for i := 0; i < nd.Count(); i++ {
			seen = append(seen, binary.BigEndian.Uint64(nd.KeyAt(i)))
		}
		right := nd.RightSibling()
		tree.cache.Unpin(p)
		if right == 0 {
			break
		}
		p, nd, err = tree.fetchNode(right)
		if err != nil {
			t.Fatalf("fetchNode: %v", err)
		}
	}

	if len(seen) != n {
		t.Fatalf("expected %d keys walking the leaf chain, got %d", n, len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Fatalf("leaf chain not ascending at index %d: %d >= %d", i, seen[i-1], seen[i])
		}
	}
}
