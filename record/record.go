// Package record implements the design's Key/Record Codec: the
// empty/tiny/small/blob discrimination of §3's "Record encoding within a
// leaf slot", plus the comparator dispatch contract of §4.2's "Comparator
// contract". This is new relative to the teacher, whose node_codec.go
// encodes values as length-prefixed variable-size fields rather than
// packing short records into the rid the way the design requires; the shape
// here follows spec.md directly and the encode/decode discipline of
// original_source/src/btree_insert.c's record-flag handling.
package record

import "encoding/binary"

// Slot record flag bits. FlagEmpty is explicit (not the zero value) so a
// zeroed rid distinguishes cleanly from a genuine blob record, whose flags
// byte also carries none of these three bits set — spec.md's "blob ...  no
// size flag set" is exactly "none of Empty/Tiny/Small".
const (
	FlagEmpty byte = 1 << 0
	FlagTiny  byte = 1 << 1
	FlagSmall byte = 1 << 2
)

// Kind is the closed record-encoding enum from §3.
type Kind int

const (
	KindEmpty Kind = iota
	KindTiny
	KindSmall
	KindBlob
)

// Classify returns the encoding a record of the given byte length uses.
func Classify(size int) Kind {
	switch {
	case size == 0:
		return KindEmpty
	case size < 8:
		return KindTiny
	case size == 8:
		return KindSmall
	default:
		return KindBlob
	}
}

// KindOf inspects a slot's flags byte and returns which encoding it holds.
// A flags byte with none of Empty/Tiny/Small set is a blob record.
func KindOf(flags byte) Kind {
	switch {
	case flags&FlagEmpty != 0:
		return KindEmpty
	case flags&FlagTiny != 0:
		return KindTiny
	case flags&FlagSmall != 0:
		return KindSmall
	default:
		return KindBlob
	}
}

// EncodeInline packs data (len(data) <= 8) into a slot's flags+rid pair for
// the empty/tiny/small cases. Callers with len(data) > 8 must route through
// blobstore instead and use EncodeBlobRid.
func EncodeInline(data []byte) (flags byte, rid [8]byte) {
	switch Classify(len(data)) {
	case KindEmpty:
		return FlagEmpty, rid
	case KindTiny:
		copy(rid[:], data)
		rid[7] = byte(len(data))
		return FlagTiny, rid
	case KindSmall:
		copy(rid[:], data)
		return FlagSmall, rid
	default:
		panic("record: EncodeInline called with a record too large to inline")
	}
}

// DecodeInline reverses EncodeInline for the empty/tiny/small cases. It
// panics if flags indicates a blob record — callers must check KindOf first.
func DecodeInline(flags byte, rid [8]byte) []byte {
	switch KindOf(flags) {
	case KindEmpty:
		return nil
	case KindTiny:
		size := rid[7]
		return append([]byte(nil), rid[:size]...)
	case KindSmall:
		return append([]byte(nil), rid[:8]...)
	default:
		panic("record: DecodeInline called on a blob-encoded slot")
	}
}

// EncodeBlobRid packs a blob store offset into a slot's rid for the blob
// case. The flags byte passed alongside must have none of Empty/Tiny/Small
// set.
func EncodeBlobRid(offset int64) (rid [8]byte) {
	binary.LittleEndian.PutUint64(rid[:], uint64(offset))
	return rid
}

func DecodeBlobRid(rid [8]byte) int64 {
	return int64(binary.LittleEndian.Uint64(rid[:]))
}
