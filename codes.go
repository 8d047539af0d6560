package curldriver

import "fmt"

// Code is a per-transfer result code, in the engine's own numbering.
//
// Values other than the named constants are passed through from the engine
// verbatim; the driver itself only ever produces the constants below.
type Code int

const (
	// CodeOK indicates the transfer completed successfully.
	CodeOK Code = 0
	// CodeOutOfMemory indicates an allocation failure, in the driver or
	// the engine.
	CodeOutOfMemory Code = 27
	// CodeRecvError indicates the transfer was aborted before a completion
	// message could be read, e.g. due to task cancellation or an engine
	// failure mid-transfer.
	CodeRecvError Code = 56
	// CodeAgain indicates the easy handle was already owned by another
	// multi handle, i.e. the engine is busy with it. Retry later.
	CodeAgain Code = 81
)

// String returns a human-readable representation of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeOutOfMemory:
		return "out of memory"
	case CodeRecvError:
		return "recv error"
	case CodeAgain:
		return "again"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// MultiCode is a multi-handle result code, in the engine's own numbering.
type MultiCode int

const (
	// MultiOK indicates success.
	MultiOK MultiCode = 0
	// MultiBadHandle indicates an invalid multi handle was passed to the
	// engine.
	MultiBadHandle MultiCode = 1
	// MultiOutOfMemory indicates an allocation failure. The driver also
	// uses it when a scheduler primitive fails during a multi wait, the
	// engine vocabulary lacking a better fit.
	MultiOutOfMemory MultiCode = 3
	// MultiInternalError indicates an internal engine failure.
	MultiInternalError MultiCode = 4
	// MultiAddedAlready indicates the easy handle is already owned by a
	// multi handle.
	MultiAddedAlready MultiCode = 7
)

// String returns a human-readable representation of the code.
func (c MultiCode) String() string {
	switch c {
	case MultiOK:
		return "ok"
	case MultiBadHandle:
		return "bad handle"
	case MultiOutOfMemory:
		return "out of memory"
	case MultiInternalError:
		return "internal error"
	case MultiAddedAlready:
		return "added already"
	default:
		return fmt.Sprintf("multi code(%d)", int(c))
	}
}
