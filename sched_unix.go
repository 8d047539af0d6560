//go:build unix

package curldriver

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// sysPollSliceMS bounds individual poll(2) calls so cancellation is
// noticed promptly even during unbounded waits.
const sysPollSliceMS = 100

// SysScheduler is a ready-made Scheduler backed by poll(2) and the Go
// runtime, for embedding the driver outside of any bespoke cooperative
// runtime. Each goroutine using it plays the role of one task; the
// supplied context cancels every suspension.
type SysScheduler struct {
	ctx   context.Context
	epoch time.Time
}

// NewSysScheduler creates a SysScheduler whose suspensions are cancelled
// when ctx is done. A nil ctx means never cancelled.
func NewSysScheduler(ctx context.Context) *SysScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SysScheduler{ctx: ctx, epoch: time.Now()}
}

// Current returns the cancellation context as the task handle.
func (s *SysScheduler) Current() Task { return s.ctx }

func (s *SysScheduler) cancelled() error {
	select {
	case <-s.ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

// Delay suspends the calling goroutine for the given duration, or until
// the scheduler's context is cancelled.
func (s *SysScheduler) Delay(timeoutMS int64) error {
	if timeoutMS < 0 {
		<-s.ctx.Done()
		return ErrCancelled
	}
	if err := s.cancelled(); err != nil {
		return err
	}
	t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return ErrCancelled
	case <-t.C:
		return nil
	}
}

// PollOne waits for readiness on a single descriptor.
func (s *SysScheduler) PollOne(fd int, events IOEvents, timeoutMS int64) (IOEvents, error) {
	fds := [1]PollFD{{FD: fd, Events: events}}
	if _, err := s.Poll(fds[:], timeoutMS); err != nil {
		return 0, err
	}
	return fds[0].REvents, nil
}

// Poll waits for readiness on a set of descriptors, filling in REvents and
// returning the number of ready descriptors; 0 means the timeout elapsed.
func (s *SysScheduler) Poll(fds []PollFD, timeoutMS int64) (int, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fds[i].FD), Events: eventsToPoll(fds[i].Events)}
		fds[i].REvents = 0
	}
	remaining := timeoutMS
	for {
		if err := s.cancelled(); err != nil {
			return 0, err
		}
		slice := int64(sysPollSliceMS)
		if remaining >= 0 && remaining < slice {
			slice = remaining
		}
		n, err := unix.Poll(pfds, int(slice))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n > 0 {
			for i := range fds {
				fds[i].REvents = pollToEvents(pfds[i].Revents)
			}
			return n, nil
		}
		if remaining >= 0 {
			remaining -= slice
			if remaining <= 0 {
				return 0, nil
			}
		}
	}
}

// MonotonicMSec returns milliseconds since the scheduler was created.
func (s *SysScheduler) MonotonicMSec() int64 {
	return time.Since(s.epoch).Milliseconds()
}

// eventsToPoll converts IOEvents to poll(2) event flags.
func eventsToPoll(events IOEvents) int16 {
	var pollEvents int16
	if events&EventRead != 0 {
		pollEvents |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		pollEvents |= unix.POLLOUT
	}
	if events&EventError != 0 {
		pollEvents |= unix.POLLERR
	}
	return pollEvents
}

// pollToEvents converts poll(2) event flags to IOEvents.
func pollToEvents(pollEvents int16) IOEvents {
	var events IOEvents
	if pollEvents&unix.POLLIN != 0 {
		events |= EventRead
	}
	if pollEvents&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if pollEvents&unix.POLLERR != 0 {
		events |= EventError
	}
	if pollEvents&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	if pollEvents&unix.POLLNVAL != 0 {
		events |= EventInvalid
	}
	return events
}
