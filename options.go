package pagetree

import "os"

// Options bundles the parameters create_ex passes at database creation: page
// geometry plus the open/create flags, matching the teacher's pattern of
// explicit constructor arguments (NewBufferPool(capacity),
// NewOnDiskPager(indexPath)) rather than a layered config-file/env framework
// (SPEC_FULL.md §A.3).
type Options struct {
	// PageSize is the device page size in bytes. Zero selects DefaultPageSize.
	PageSize int

	// KeySize is the fixed width every key slot reserves. Zero selects
	// DefaultKeySize.
	KeySize int

	// MaxKeys caps slots per node; zero lets node.NewLayout derive the
	// maximum that fits PageSize.
	MaxKeys int

	// Flags are the open/create flags from §6.3 (InMemoryDB, ReadOnly,
	// CacheStrict, DisableMmap).
	Flags Flags

	// Mode is the file permission used by Create/CreateEx. Ignored for
	// InMemoryDB.
	Mode os.FileMode

	// CacheCapacity bounds resident pages; zero means unbounded (subject
	// only to device/OS memory).
	CacheCapacity int

	// TrackAllocations enables file/line leak reporting on the page cache's
	// allocator (see Database.ReportLeaks). Off by default for speed.
	TrackAllocations bool
}

const (
	DefaultPageSize = 4096
	DefaultKeySize  = 16
)

// DefaultOptions returns the Options a plain Create(path, flags) uses.
func DefaultOptions() Options {
	return Options{
		PageSize: DefaultPageSize,
		KeySize:  DefaultKeySize,
		Mode:     0644,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.KeySize <= 0 {
		o.KeySize = DefaultKeySize
	}
	if o.Mode == 0 {
		o.Mode = 0644
	}
	return o
}
