package node

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pagetree/pagetree/record"
)

func newTestNode(t *testing.T, isLeaf bool) (Node, Layout) {
	t.Helper()
	layout := NewLayout(512, 16, 0)
	buf := make([]byte, layout.PageSize)
	n := View(buf, layout)
	n.Init(isLeaf)
	return n, layout
}

func TestHeaderRoundTrip(t *testing.T) {
	n, _ := newTestNode(t, true)
	n.SetLeftSibling(100)
	n.SetRightSibling(200)
	n.SetPtrLeft(300)
	n.SetCount(3)

	if !n.IsLeaf() {
		t.Fatalf("expected leaf")
	}
	if n.LeftSibling() != 100 || n.RightSibling() != 200 || n.PtrLeft() != 300 {
		t.Fatalf("sibling/ptrLeft round trip failed: %+v", n.Header())
	}
	if n.Count() != 3 {
		t.Fatalf("count round trip failed: got %d", n.Count())
	}
}

func TestSlotSetAndReadBack(t *testing.T) {
	n, _ := newTestNode(t, true)
	n.SetCount(1)

	var rid [8]byte
	binary.LittleEndian.PutUint64(rid[:], 42)
	n.SetSlot(0, record.FlagSmall, []byte("abc"), rid)

	if got := n.FlagsAt(0); got != record.FlagSmall {
		t.Fatalf("expected record.FlagSmall, got %d", got)
	}
	if !bytes.Equal(n.KeyAt(0), []byte("abc")) {
		t.Fatalf("key mismatch: %q", n.KeyAt(0))
	}
	if n.RidUint64At(0) != 42 {
		t.Fatalf("rid mismatch: %d", n.RidUint64At(0))
	}
}

func TestInsertAtShiftsRight(t *testing.T) {
	n, _ := newTestNode(t, true)
	n.SetCount(2)
	var r0, r1 [8]byte
	binary.LittleEndian.PutUint64(r0[:], 1)
	binary.LittleEndian.PutUint64(r1[:], 2)
	n.SetSlot(0, record.FlagSmall, []byte("a"), r0)
	n.SetSlot(1, record.FlagSmall, []byte("c"), r1)

	n.InsertAt(1)
	var rb [8]byte
	binary.LittleEndian.PutUint64(rb[:], 99)
	n.SetSlot(1, record.FlagSmall, []byte("b"), rb)

	if n.Count() != 3 {
		t.Fatalf("expected count 3, got %d", n.Count())
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(n.KeyAt(i)) != w {
			t.Fatalf("slot %d: expected %q, got %q", i, w, n.KeyAt(i))
		}
	}
}

func TestRemoveAtShiftsLeft(t *testing.T) {
	n, _ := newTestNode(t, true)
	n.SetCount(3)
	for i, k := range []string{"a", "b", "c"} {
		var r [8]byte
		binary.LittleEndian.PutUint64(r[:], uint64(i))
		n.SetSlot(i, record.FlagSmall, []byte(k), r)
	}

	n.RemoveAt(1)

	if n.Count() != 2 {
		t.Fatalf("expected count 2, got %d", n.Count())
	}
	if string(n.KeyAt(0)) != "a" || string(n.KeyAt(1)) != "c" {
		t.Fatalf("unexpected slots after remove: %q %q", n.KeyAt(0), n.KeyAt(1))
	}
}

func TestCopyRangeMovesUpperHalf(t *testing.T) {
	src, layout := newTestNode(t, true)
	src.SetCount(4)
	for i, k := range []string{"a", "b", "c", "d"} {
		var r [8]byte
		binary.LittleEndian.PutUint64(r[:], uint64(i))
		src.SetSlot(i, record.FlagSmall, []byte(k), r)
	}

	dstBuf := make([]byte, layout.PageSize)
	dst := View(dstBuf, layout)
	dst.Init(true)
	dst.SetCount(2)

	CopyRange(dst, 0, src, 2, 4)

	if string(dst.KeyAt(0)) != "c" || string(dst.KeyAt(1)) != "d" {
		t.Fatalf("unexpected copied slots: %q %q", dst.KeyAt(0), dst.KeyAt(1))
	}
}

func TestLayoutCapsMaxKeysToPageCapacity(t *testing.T) {
	layout := NewLayout(128, 16, 1000)
	if layout.MaxKeys > (128-HeaderSize)/layout.SlotWidth() {
		t.Fatalf("MaxKeys %d exceeds page capacity", layout.MaxKeys)
	}
	if layout.MaxKeys <= 0 {
		t.Fatalf("expected positive MaxKeys, got %d", layout.MaxKeys)
	}
}
