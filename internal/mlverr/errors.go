// Package mlverr defines the error taxonomy shared across the materialization
// pipeline: NotFound, Malformed, transient I/O, out of memory, access denied.
package mlverr

import "errors"

// Sentinel errors the caller (the filesystem host binding) translates to its
// own errno-shaped surface. Wrap these with fmt.Errorf("...: %w", ...) to add
// context; callers should use errors.Is against the sentinels below.
var (
	// ErrNotFound means a path did not resolve or a frame index was out of range.
	ErrNotFound = errors.New("mlvfs: not found")

	// ErrMalformed means a container block was missing, truncated, or failed
	// to decode (missing RAWI, implausible block size, decoder failure).
	ErrMalformed = errors.New("mlvfs: malformed recording")

	// ErrTransientIO means a chunk read failed; the caller should surface a
	// short read rather than caching a failed buffer.
	ErrTransientIO = errors.New("mlvfs: transient I/O error")

	// ErrOutOfMemory means the image buffer cache budget is exhausted with no
	// evictable entries.
	ErrOutOfMemory = errors.New("mlvfs: cache budget exhausted")

	// ErrAccessDenied means a write was attempted against a virtual file while
	// writable-DNG mode is disabled.
	ErrAccessDenied = errors.New("mlvfs: access denied")
)

// Malformed wraps reason in ErrMalformed together with the recording and
// frame index that triggered it. Error() names the recording and reason; the
// frame index is stored but not included in the message.
func Malformed(recording string, frameIndex int, reason string) error {
	return &contextError{sentinel: ErrMalformed, recording: recording, frameIndex: frameIndex, reason: reason}
}

// Transient wraps err in ErrTransientIO with the recording/chunk context.
func Transient(recording string, chunkIdx int, err error) error {
	return &contextError{sentinel: ErrTransientIO, recording: recording, frameIndex: chunkIdx, reason: err.Error()}
}

type contextError struct {
	sentinel   error
	recording  string
	frameIndex int
	reason     string
}

func (e *contextError) Error() string {
	if e.reason == "" {
		return e.sentinel.Error() + ": " + e.recording
	}
	return e.sentinel.Error() + ": " + e.recording + ": " + e.reason
}

func (e *contextError) Unwrap() error { return e.sentinel }
