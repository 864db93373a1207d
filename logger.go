package pagetree

import (
	"log"
	"os"
)

// Logger is the injectable logging capability a Database writes through
// (its Create/Open paths are the only callers; the lower packages do not
// log), a struct of func fields rather than an interface hierarchy — the
// same shape as the teacher's Pager capability
// (ShubhamNegi4-DaemonDB/bplustree/struct.go) — so tests can silence or
// capture output without a mock type. Matches the teacher's ad-hoc
// fmt.Printf texture at cache hit/miss and disk-manager boundaries
// (storage_engine/bufferpool/bufferpool.go, storage_engine/disk_manager),
// routed through one place instead of scattered Printf calls
// (SPEC_FULL.md §A.1).
type Logger struct {
	Infof  func(format string, args ...any)
	Warnf  func(format string, args ...any)
	Errorf func(format string, args ...any)
}

// NewDefaultLogger returns a stdlib-backed logger writing lines prefixed
// `[pagetree] ` plus the standard date/time stamp to os.Stderr. It is only
// used when installed with SetLogger; a Database not given a Logger uses
// discardLogger and logs nothing.
func NewDefaultLogger() Logger {
	std := log.New(os.Stderr, "[pagetree] ", log.LstdFlags)
	return Logger{
		Infof:  func(format string, args ...any) { std.Printf(format, args...) },
		Warnf:  func(format string, args ...any) { std.Printf("warn: "+format, args...) },
		Errorf: func(format string, args ...any) { std.Printf("error: "+format, args...) },
	}
}

// discardLogger silences everything; used by default in New() so a Database
// that is never handed a Logger doesn't write to stderr as a side effect of
// package import.
func discardLogger() Logger {
	noop := func(string, ...any) {}
	return Logger{Infof: noop, Warnf: noop, Errorf: noop}
}
