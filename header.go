package pagetree

import "encoding/binary"

// fileMagic identifies a pagetree database file. A mismatched magic on open
// fails INV_FILE_VERSION per §6.1.
var fileMagic = [4]byte{'P', 'G', 'T', 'R'}

// Header field offsets within page 0, per §6.1:
//
//	magic[4] version[4] page_size[4] key_size[2] flags[2] root_offset[8] freelist_head[8] key_count[8]
const (
	hdrOffMagic        = 0
	hdrOffVersion      = 4 // major, minor, revision, reserved — one byte each
	hdrOffPageSize     = 8
	hdrOffKeySize      = 12
	hdrOffFlags        = 14
	hdrOffRootOffset   = 16
	hdrOffFreelistHead = 24
	hdrOffKeyCount     = 32
	HeaderSize         = 40
)

// fileHeader is the decoded fixed-size page-0 layout.
type fileHeader struct {
	VersionMajor    byte
	VersionMinor    byte
	VersionRevision byte
	PageSize        uint32
	KeySize         uint16
	Flags           uint16
	RootOffset      int64
	FreelistHead    int64
	KeyCount        int64
}

func encodeFileHeader(buf []byte, h fileHeader) {
	copy(buf[hdrOffMagic:], fileMagic[:])
	buf[hdrOffVersion+0] = h.VersionMajor
	buf[hdrOffVersion+1] = h.VersionMinor
	buf[hdrOffVersion+2] = h.VersionRevision
	buf[hdrOffVersion+3] = 0
	binary.LittleEndian.PutUint32(buf[hdrOffPageSize:], h.PageSize)
	binary.LittleEndian.PutUint16(buf[hdrOffKeySize:], h.KeySize)
	binary.LittleEndian.PutUint16(buf[hdrOffFlags:], h.Flags)
	binary.LittleEndian.PutUint64(buf[hdrOffRootOffset:], uint64(h.RootOffset))
	binary.LittleEndian.PutUint64(buf[hdrOffFreelistHead:], uint64(h.FreelistHead))
	binary.LittleEndian.PutUint64(buf[hdrOffKeyCount:], uint64(h.KeyCount))
}

// decodeFileHeader reads buf (at least HeaderSize bytes) into a fileHeader,
// returning ErrInvFileVersion on a magic mismatch.
func decodeFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < HeaderSize {
		return fileHeader{}, ErrShortRead
	}
	if string(buf[hdrOffMagic:hdrOffMagic+4]) != string(fileMagic[:]) {
		return fileHeader{}, ErrInvFileVersion
	}
	return fileHeader{
		VersionMajor:    buf[hdrOffVersion+0],
		VersionMinor:    buf[hdrOffVersion+1],
		VersionRevision: buf[hdrOffVersion+2],
		PageSize:        binary.LittleEndian.Uint32(buf[hdrOffPageSize:]),
		KeySize:         binary.LittleEndian.Uint16(buf[hdrOffKeySize:]),
		Flags:           binary.LittleEndian.Uint16(buf[hdrOffFlags:]),
		RootOffset:      int64(binary.LittleEndian.Uint64(buf[hdrOffRootOffset:])),
		FreelistHead:    int64(binary.LittleEndian.Uint64(buf[hdrOffFreelistHead:])),
		KeyCount:        int64(binary.LittleEndian.Uint64(buf[hdrOffKeyCount:])),
	}, nil
}
