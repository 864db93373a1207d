package node

import "encoding/binary"

// Node is a mutable view over a page's payload, interpreted as a B-tree
// node per this package's Layout. It does not own the underlying buffer —
// callers (btree, cursor) obtain it from a page.Page's payload and write
// through it inside page.Page.MutatePayload so the page's dirty flag stays
// honest.
type Node struct {
	buf    []byte
	layout Layout
}

// View wraps buf (a full page payload, len == layout.PageSize) as a Node.
func View(buf []byte, layout Layout) Node {
	return Node{buf: buf, layout: layout}
}

// Init resets buf to an empty node of the given leaf-ness. Used when a
// freshly allocated page becomes a B-tree node.
func (n Node) Init(isLeaf bool) {
	WriteHeader(n.buf, Header{IsLeaf: isLeaf})
}

func (n Node) Header() Header       { return ReadHeader(n.buf) }
func (n Node) SetHeader(h Header)   { WriteHeader(n.buf, h) }
func (n Node) Count() int           { return int(ReadHeader(n.buf).Count) }
func (n Node) IsLeaf() bool         { return ReadHeader(n.buf).IsLeaf }
func (n Node) LeftSibling() int64   { return ReadHeader(n.buf).LeftSibling }
func (n Node) RightSibling() int64  { return ReadHeader(n.buf).RightSibling }
func (n Node) PtrLeft() int64       { return ReadHeader(n.buf).PtrLeft }

func (n Node) SetCount(c int) {
	h := n.Header()
	h.Count = uint16(c)
	n.SetHeader(h)
}

func (n Node) SetLeftSibling(v int64) {
	h := n.Header()
	h.LeftSibling = v
	n.SetHeader(h)
}

func (n Node) SetRightSibling(v int64) {
	h := n.Header()
	h.RightSibling = v
	n.SetHeader(h)
}

func (n Node) SetPtrLeft(v int64) {
	h := n.Header()
	h.PtrLeft = v
	n.SetHeader(h)
}

func (n Node) slotOffset(i int) int {
	return HeaderSize + i*n.layout.SlotWidth()
}

// FlagsAt returns the record-flag byte of slot i.
func (n Node) FlagsAt(i int) byte {
	return n.buf[n.slotOffset(i)]
}

func (n Node) setFlagsAt(i int, f byte) {
	n.buf[n.slotOffset(i)] = f
}

// KeyAt returns the logical (unpadded) key bytes stored in slot i. The
// returned slice aliases the node's buffer; callers that need to retain it
// past the next mutation (e.g. an uncoupling cursor) must copy it.
func (n Node) KeyAt(i int) []byte {
	off := n.slotOffset(i)
	keyLen := binary.LittleEndian.Uint16(n.buf[off+1:])
	start := off + slotHeaderSize
	return n.buf[start : start+int(keyLen)]
}

// RidAt returns the raw 8-byte rid of slot i, meaning dependent on node
// type and record flags per the GLOSSARY.
func (n Node) RidAt(i int) [8]byte {
	off := n.slotOffset(i) + slotHeaderSize + n.layout.KeySize
	var out [8]byte
	copy(out[:], n.buf[off:off+ridSize])
	return out
}

func (n Node) RidUint64At(i int) uint64 {
	r := n.RidAt(i)
	return binary.LittleEndian.Uint64(r[:])
}

// ChildAt reads slot i's rid as a child page offset (internal nodes only).
func (n Node) ChildAt(i int) int64 { return int64(n.RidUint64At(i)) }

// SetSlot writes flags, key, and rid into slot i, padding key to KeySize
// with zero bytes. key must not exceed KeySize.
func (n Node) SetSlot(i int, flags byte, key []byte, rid [8]byte) {
	off := n.slotOffset(i)
	n.buf[off] = flags
	binary.LittleEndian.PutUint16(n.buf[off+1:], uint16(len(key)))
	keyStart := off + slotHeaderSize
	clear(n.buf[keyStart : keyStart+n.layout.KeySize])
	copy(n.buf[keyStart:keyStart+n.layout.KeySize], key)
	ridStart := keyStart + n.layout.KeySize
	copy(n.buf[ridStart:ridStart+ridSize], rid[:])
}

// SetChild is a convenience for SetSlot when the rid is a child page offset.
func (n Node) SetChild(i int, flags byte, key []byte, child int64) {
	var rid [8]byte
	binary.LittleEndian.PutUint64(rid[:], uint64(child))
	n.SetSlot(i, flags, key, rid)
}

// InsertAt shifts slots [i, count) right by one slot width and leaves slot
// i's bytes undefined for the caller to fill via SetSlot, then bumps count.
// Mirrors the design's insert algorithm step 2: "shifting higher slots
// right by one slot-width."
func (n Node) InsertAt(i int) {
	count := n.Count()
	width := n.layout.SlotWidth()
	src := n.slotOffset(i)
	dstEnd := n.slotOffset(count + 1)
	srcEnd := n.slotOffset(count)
	copy(n.buf[src+width:dstEnd], n.buf[src:srcEnd])
	n.SetCount(count + 1)
}

// RemoveAt shifts slots (i, count) left by one slot width, overwriting slot
// i, and decrements count. Mirrors the erase algorithm's "shifts higher
// slots left by one slot-width."
func (n Node) RemoveAt(i int) {
	count := n.Count()
	dst := n.slotOffset(i)
	srcStart := n.slotOffset(i + 1)
	srcEnd := n.slotOffset(count)
	copy(n.buf[dst:dst+(srcEnd-srcStart)], n.buf[srcStart:srcEnd])
	n.SetCount(count - 1)
}

// CopyRange copies slots [from, to) of n into dst starting at slot dstStart.
// Used by split to move the upper half of a full node into its new sibling.
func CopyRange(dst Node, dstStart int, src Node, from, to int) {
	width := src.layout.SlotWidth()
	srcOff := src.slotOffset(from)
	n := to - from
	copy(dst.buf[dst.slotOffset(dstStart):dst.slotOffset(dstStart+n)], src.buf[srcOff:srcOff+n*width])
}

func clear(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
