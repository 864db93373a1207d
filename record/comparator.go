package record

import "bytes"

// TryFull is the sentinel a PrefixFunc returns to defer to the full-key
// comparator, per §4.2: "if it returns TRY_FULL, the full-key comparator is
// consulted." It is out of the {-1,0,1} range any real comparison returns,
// so a Comparator can tell a real answer from a deferral unambiguously.
const TryFull = 1 << 30

// CompareFunc is the full-key comparator contract: deterministic, total,
// returning <0, 0, or >0.
type CompareFunc func(a, b []byte) int

// PrefixFunc is the optional fast-path comparator installed alongside a
// CompareFunc. It may inspect only a prefix of each key and return TryFull
// when that prefix doesn't decide the comparison.
type PrefixFunc func(a, b []byte) int

// Comparator bundles the full and (optional) prefix comparators the design
// calls "a function capability configured per database" (§9) rather than a
// subclassed database type — in Go, a couple of stored func values.
type Comparator struct {
	Full   CompareFunc
	Prefix PrefixFunc
}

// Default returns the memcmp-equivalent comparator (bytes.Compare), used
// when a database has no comparator installed via SetCompareFunc.
func Default() Comparator {
	return Comparator{Full: bytes.Compare}
}

// Compare runs the prefix comparator first if installed, falling back to
// the full comparator on TryFull or when no prefix comparator exists.
func (c Comparator) Compare(a, b []byte) int {
	if c.Prefix != nil {
		if r := c.Prefix(a, b); r != TryFull {
			return r
		}
	}
	return c.Full(a, b)
}
