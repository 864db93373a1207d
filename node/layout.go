// Package node implements the packed on-page encoding of B-tree internal
// and leaf nodes described in the design's §3 and §6.1: a node header
// (count, is-leaf flag, sibling links, ptr-left) followed by a contiguous
// slot array of fixed width sizeof(slot_header)+key_size. Grounded on the
// teacher's encodeNode/decodeNode (ShubhamNegi4-DaemonDB/bplustree/node_codec.go),
// generalized from the teacher's variable-length keys-and-values layout to
// the design's fixed key_size slots with a flag-discriminated 8-byte rid.
package node

import "encoding/binary"

// FlagLeaf is the node-header flag bit marking a node as a leaf. It lives in
// the header's own flags byte (offFlags), a different field from the
// per-slot record flags the record package defines — the two flag spaces
// never overlap.
const FlagLeaf byte = 1 << 0

// Layout describes the fixed geometry of every node in one database: how
// large a page is, how wide a key slot is, and how many slots a node can
// hold before it must split.
type Layout struct {
	PageSize int
	KeySize  int
	MaxKeys  int
}

// NewLayout derives a Layout for the given page/key size, capping MaxKeys at
// both the caller-requested value and the number of slots that physically
// fit after the node header, mirroring the teacher's compile-time
// node1max-exceeds-PageSize guard (ShubhamNegi4-DaemonDB/bplustree/struct.go)
// but as a runtime computation since page/key size are configurable here.
func NewLayout(pageSize, keySize, requestedMaxKeys int) Layout {
	fit := (pageSize - HeaderSize) / slotWidth(keySize)
	maxKeys := requestedMaxKeys
	if maxKeys <= 0 || maxKeys > fit {
		maxKeys = fit
	}
	return Layout{PageSize: pageSize, KeySize: keySize, MaxKeys: maxKeys}
}

func slotWidth(keySize int) int { return slotHeaderSize + keySize + ridSize }

func (l Layout) SlotWidth() int { return slotWidth(l.KeySize) }

// Header field offsets. Every non-header page begins with a 1-byte type tag
// and 3 reserved bytes per §6.1; the node header follows starting at byte 4.
const (
	offType         = 0
	offTypeReserved = 1 // 3 bytes
	offCount        = 4 // 2 bytes
	offFlags        = 6 // 1 byte
	offHdrReserved  = 7 // 1 byte, pads to an 8-byte boundary
	offLeftSibling  = 8
	offRightSibling = 16
	offPtrLeft      = 24
	HeaderSize      = 32
)

const (
	slotHeaderSize = 3 // flags(1) + key length(2)
	ridSize        = 8
)

// Header is the decoded fixed-size prefix of a node's payload.
type Header struct {
	Count        uint16
	IsLeaf       bool
	LeftSibling  int64
	RightSibling int64
	PtrLeft      int64
}

// ReadHeader decodes the node header from buf (a full page payload).
func ReadHeader(buf []byte) Header {
	return Header{
		Count:        binary.LittleEndian.Uint16(buf[offCount:]),
		IsLeaf:       buf[offFlags]&FlagLeaf != 0,
		LeftSibling:  int64(binary.LittleEndian.Uint64(buf[offLeftSibling:])),
		RightSibling: int64(binary.LittleEndian.Uint64(buf[offRightSibling:])),
		PtrLeft:      int64(binary.LittleEndian.Uint64(buf[offPtrLeft:])),
	}
}

// WriteHeader encodes h into buf, preserving the page's type tag byte
// (offset 0) which this package does not own.
func WriteHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[offCount:], h.Count)
	var flags byte
	if h.IsLeaf {
		flags |= FlagLeaf
	}
	buf[offFlags] = flags
	binary.LittleEndian.PutUint64(buf[offLeftSibling:], uint64(h.LeftSibling))
	binary.LittleEndian.PutUint64(buf[offRightSibling:], uint64(h.RightSibling))
	binary.LittleEndian.PutUint64(buf[offPtrLeft:], uint64(h.PtrLeft))
}
