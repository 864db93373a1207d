// Package dbflags holds the Flags bitmask shared by every internal package
// and re-exported by the root pagetree package, for the same import-cycle
// reason as internal/errs.
package dbflags

// Flags is a bitmask passed to the open/create/insert/cursor-move family of
// calls, matching the flag enumeration in the design's §6.3.
type Flags uint32

const (
	// Open/create flags.
	InMemoryDB Flags = 1 << iota
	ReadOnly
	CacheStrict
	DisableMmap

	// Insert flags.
	Overwrite

	// Cursor move flags.
	First
	Last
	Next
	Previous
	SkipDuplicates
	OnlyDuplicates
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
