package pagetree

import "github.com/pagetree/pagetree/internal/errs"

// Status is the error-kind taxonomy from the design's error handling section,
// re-exported from internal/errs so callers never import an internal package
// directly.
type Status = errs.Status

const (
	StatusOK             = errs.StatusOK
	StatusInvParameter   = errs.StatusInvParameter
	StatusInvPageSize    = errs.StatusInvPageSize
	StatusInvKeySize     = errs.StatusInvKeySize
	StatusKeyNotFound    = errs.StatusKeyNotFound
	StatusDuplicateKey   = errs.StatusDuplicateKey
	StatusCursorIsNil    = errs.StatusCursorIsNil
	StatusNotInitialized = errs.StatusNotInitialized
	StatusLimitsReached  = errs.StatusLimitsReached
	StatusIOError        = errs.StatusIOError
	StatusFileNotFound   = errs.StatusFileNotFound
	StatusShortRead      = errs.StatusShortRead
	StatusInvFileVersion = errs.StatusInvFileVersion
	StatusOutOfMemory    = errs.StatusOutOfMemory
)

// Error is the concrete error type every pagetree operation returns,
// classified by Status. Compare with errors.Is against the Err* sentinels
// below rather than inspecting Msg.
type Error = errs.Error

// Sentinel errors for the closed taxonomy in the design's §7. The concrete
// *Error returned by an operation carries additional context in its Msg
// field; errors.Is(err, pagetree.ErrKeyNotFound) matches by Status alone.
var (
	ErrInvParameter   = errs.ErrInvParameter
	ErrInvPageSize    = errs.ErrInvPageSize
	ErrInvKeySize     = errs.ErrInvKeySize
	ErrKeyNotFound    = errs.ErrKeyNotFound
	ErrDuplicateKey   = errs.ErrDuplicateKey
	ErrCursorIsNil    = errs.ErrCursorIsNil
	ErrNotInitialized = errs.ErrNotInitialized
	ErrLimitsReached  = errs.ErrLimitsReached
	ErrIOError        = errs.ErrIOError
	ErrFileNotFound   = errs.ErrFileNotFound
	ErrShortRead      = errs.ErrShortRead
	ErrInvFileVersion = errs.ErrInvFileVersion
	ErrOutOfMemory    = errs.ErrOutOfMemory
)

// StatusOf extracts the Status carried by err, or StatusIOError if err is
// non-nil but carries no Status.
func StatusOf(err error) Status { return errs.Of(err) }
