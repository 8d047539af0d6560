package curldriver

import "errors"

// ErrCancelled is returned by scheduler primitives when the suspended task
// is cancelled. Any non-nil error from a scheduler primitive is terminal
// for the driver call that hit it.
var ErrCancelled = errors.New("curldriver: task cancelled")

type (
	// Task is a non-owning handle to a cooperatively scheduled unit of
	// execution. The driver only stores it for the duration of a blocking
	// call; it never invokes it.
	Task any

	// PollFD is one descriptor in a multi-descriptor poll. Events is what
	// to wait for; REvents is what the poll observed.
	PollFD struct {
		FD      int
		Events  IOEvents
		REvents IOEvents
	}

	// Scheduler is the cooperative scheduler the driver suspends on.
	//
	// Delay, PollOne and Poll are the driver's only suspension points. A
	// timeout of -1 means wait indefinitely. Implementations must honour
	// task cancellation by returning an error (conventionally
	// ErrCancelled) from a suspended primitive.
	Scheduler interface {
		// Current returns a handle to the running task.
		Current() Task
		// Delay suspends the current task for the given duration.
		Delay(timeoutMS int64) error
		// PollOne suspends the current task until fd is ready for one of
		// the given events, or the timeout elapses (returning zero
		// events).
		PollOne(fd int, events IOEvents, timeoutMS int64) (IOEvents, error)
		// Poll suspends the current task until at least one descriptor is
		// ready or the timeout elapses, filling in REvents and returning
		// the number of ready descriptors.
		Poll(fds []PollFD, timeoutMS int64) (int, error)
		// MonotonicMSec returns a monotonic clock reading in
		// milliseconds, used for timeout-budget accounting.
		MonotonicMSec() int64
	}
)
