package pagetree

import "github.com/pagetree/pagetree/internal/dbflags"

// Flags is a bitmask passed to the open/create/insert/cursor-move family of
// calls, matching the flag enumeration in the design's §6.3.
type Flags = dbflags.Flags

const (
	InMemoryDB     = dbflags.InMemoryDB
	ReadOnly       = dbflags.ReadOnly
	CacheStrict    = dbflags.CacheStrict
	DisableMmap    = dbflags.DisableMmap
	Overwrite      = dbflags.Overwrite
	First          = dbflags.First
	Last           = dbflags.Last
	Next           = dbflags.Next
	Previous       = dbflags.Previous
	SkipDuplicates = dbflags.SkipDuplicates
	OnlyDuplicates = dbflags.OnlyDuplicates
)
