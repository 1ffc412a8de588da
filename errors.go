package pagecapture

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Exporter].
	ErrClosed = errors.New("pagecapture: exporter is closed")

	// ErrCapture matches every [CaptureError].
	ErrCapture = errors.New("pagecapture: capture failed")

	// ErrTainted marks a rasterization failure caused by a resource the
	// renderer was not permitted to read.
	ErrTainted = errors.New("pagecapture: tainted resource")

	// ErrPermission is returned by a [Fetcher] when the origin refuses access.
	ErrPermission = errors.New("pagecapture: permission denied")

	// ErrEmptyCapture matches every [EmptyCaptureError].
	ErrEmptyCapture = errors.New("pagecapture: empty capture")

	// ErrAssembly matches every [AssemblyError].
	ErrAssembly = errors.New("pagecapture: page assembly failed")

	// ErrInvalidOption is returned for malformed export options.
	ErrInvalidOption = errors.New("pagecapture: invalid option")
)

// CaptureCause tells why a capture pass failed.
type CaptureCause int

const (
	// CauseInternal is a generic rendering failure.
	CauseInternal CaptureCause = iota
	// CauseTaint is a permission or cross-origin failure.
	CauseTaint
)

func (c CaptureCause) String() string {
	if c == CauseTaint {
		return "taint"
	}
	return "internal"
}

// CaptureError is returned when the rasterization pass could not complete.
type CaptureError struct {
	Cause CaptureCause
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("pagecapture: capture failed (%s): %v", e.Cause, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool {
	return target == ErrCapture || (target == ErrTainted && e.Cause == CauseTaint)
}

// EmptyCaptureError is returned when the capture extent is degenerate.
type EmptyCaptureError struct {
	Width  int
	Height int
}

func (e *EmptyCaptureError) Error() string {
	return fmt.Sprintf("pagecapture: empty capture (%dx%d)", e.Width, e.Height)
}

func (e *EmptyCaptureError) Is(target error) bool { return target == ErrEmptyCapture }

// AssemblyError is returned when pages cannot be produced from a bitmap.
type AssemblyError struct {
	Op  string
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("pagecapture: assembly %s: %v", e.Op, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

func (e *AssemblyError) Is(target error) bool { return target == ErrAssembly }

// SkipReason classifies an image the inliner could not embed.
type SkipReason string

const (
	SkipLoadFailed SkipReason = "load_failed"
	SkipPermission SkipReason = "permission"
	SkipFetch      SkipReason = "fetch"
	SkipDecode     SkipReason = "decode"
	SkipEncode     SkipReason = "encode"
)

// InlineSkip records one image that was left to the renderer's native
// fallback. It is reported on [Result.Skipped] and never returned as a
// failure of the export.
type InlineSkip struct {
	Locator string
	Reason  SkipReason
	Err     error
}

func (s InlineSkip) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("pagecapture: image %s skipped (%s)", s.Locator, s.Reason)
	}
	return fmt.Sprintf("pagecapture: image %s skipped (%s): %v", s.Locator, s.Reason, s.Err)
}

func (s InlineSkip) Unwrap() error { return s.Err }
