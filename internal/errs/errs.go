// Package errs holds the Status/Error taxonomy shared by every internal
// package (device, pagecache, node, record, btree, cursor, txn) and
// re-exported by the root pagetree package as its public error values. It is
// its own leaf package — rather than living in package pagetree directly —
// so internal packages can return classified errors without importing the
// root package, which imports them and would otherwise form a cycle.
package errs

import "errors"

// Status is the error-kind taxonomy from the design's error handling section.
// It is not a Go error itself; every sentinel error below carries one so
// callers can classify a failure with errors.Is without string matching.
type Status int

const (
	StatusOK Status = iota
	StatusInvParameter
	StatusInvPageSize
	StatusInvKeySize
	StatusKeyNotFound
	StatusDuplicateKey
	StatusCursorIsNil
	StatusNotInitialized
	StatusLimitsReached
	StatusIOError
	StatusFileNotFound
	StatusShortRead
	StatusInvFileVersion
	StatusOutOfMemory
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInvParameter:
		return "INV_PARAMETER"
	case StatusInvPageSize:
		return "INV_PAGESIZE"
	case StatusInvKeySize:
		return "INV_KEYSIZE"
	case StatusKeyNotFound:
		return "KEY_NOT_FOUND"
	case StatusDuplicateKey:
		return "DUPLICATE_KEY"
	case StatusCursorIsNil:
		return "CURSOR_IS_NIL"
	case StatusNotInitialized:
		return "NOT_INITIALIZED"
	case StatusLimitsReached:
		return "LIMITS_REACHED"
	case StatusIOError:
		return "IO_ERROR"
	case StatusFileNotFound:
		return "FILE_NOT_FOUND"
	case StatusShortRead:
		return "SHORT_READ"
	case StatusInvFileVersion:
		return "INV_FILE_VERSION"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Status with a message, mirroring the teacher's
// fmt.Errorf("...: %w", err) wrapping idiom instead of introducing a
// separate exception hierarchy.
type Error struct {
	Status Status
	Msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, errs.ErrKeyNotFound) match any *Error carrying the
// same Status, regardless of Msg/cause — the taxonomy is by kind, not by
// instance.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == te.Status
}

func New(s Status, msg string) *Error { return &Error{Status: s, Msg: msg} }

func Wrap(s Status, msg string, cause error) *Error {
	return &Error{Status: s, Msg: msg, cause: cause}
}

// Sentinel errors for the closed taxonomy in the design's §7. Compare with
// errors.Is(err, errs.ErrKeyNotFound); the concrete *Error returned by an
// operation carries additional context in its Msg field.
var (
	ErrInvParameter   = New(StatusInvParameter, "")
	ErrInvPageSize    = New(StatusInvPageSize, "")
	ErrInvKeySize     = New(StatusInvKeySize, "")
	ErrKeyNotFound    = New(StatusKeyNotFound, "")
	ErrDuplicateKey   = New(StatusDuplicateKey, "")
	ErrCursorIsNil    = New(StatusCursorIsNil, "")
	ErrNotInitialized = New(StatusNotInitialized, "")
	ErrLimitsReached  = New(StatusLimitsReached, "")
	ErrIOError        = New(StatusIOError, "")
	ErrFileNotFound   = New(StatusFileNotFound, "")
	ErrShortRead      = New(StatusShortRead, "")
	ErrInvFileVersion = New(StatusInvFileVersion, "")
	ErrOutOfMemory    = New(StatusOutOfMemory, "")
)

// Of extracts the Status carried by err, walking Unwrap chains, or
// StatusIOError if err is non-nil but carries no Status (an unexpected
// lower-layer failure, treated as an I/O error per the propagation rule in
// the design's error handling section).
func Of(err error) Status {
	if err == nil {
		return StatusOK
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return StatusIOError
}
