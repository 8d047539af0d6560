package curldriver

// MultiInit allocates a caller-owned multi handle and registers driver
// state for it. Returns nil on allocation failure. The handle must be
// released via MultiCleanup before the Runtime is closed.
func (r *Runtime) MultiInit() Multi {
	multi := r.engine.NewMulti()
	if multi == nil {
		return nil
	}
	r.registerContext(newMultiContext(multi, r.logger))
	r.logger.Debug().Int("contexts", len(r.contexts)).Log("multi init")
	return multi
}

// MultiCleanup releases a multi handle created via MultiInit, returning the
// engine's cleanup code. The engine is expected to emit remove actions for
// every watched descriptor during cleanup; a descriptor still watched
// afterwards panics.
func (r *Runtime) MultiCleanup(multi Multi) MultiCode {
	mc := multi.Cleanup()
	// the engine may still invoke callbacks during cleanup, so the
	// context outlives the Cleanup call
	r.closeContext(multi)
	r.logger.Debug().Stringer("code", mc).Log("multi cleanup")
	return mc
}

// MultiPerform performs one non-blocking service step on a multi handle,
// returning the engine's count of in-flight transfers. It is MultiWait
// with a zero timeout, which also keeps a perform-in-a-loop caller from
// spinning the CPU.
func (r *Runtime) MultiPerform(multi Multi) (running int, code MultiCode) {
	r.logger.Debug().Log("multi perform started")
	_, running, code = r.multiWait(multi, nil, 0)
	r.logger.Debug().
		Int("running", running).
		Stringer("code", code).
		Log("multi perform finished")
	return running, code
}

// MultiWait performs at most one productive wait step on a multi handle:
// advance the engine, suspend until a watched descriptor is ready or the
// timeout elapses, notify the engine, and return. numfds reports how many
// descriptors satisfied the poll; it is 0 on every non-success path.
//
// While the engine watches no descriptor (and no extras are given), each
// step is a delay on the engine's timer followed by a timeout notification,
// and such steps repeat until the budget is spent, the engine reports no
// running transfers, or a non-OK code is returned; with a budget of -1 they
// repeat without bound.
//
// extra descriptors, if any, are polled alongside the engine's set: their
// REvents fields are filled in on return and ready extras count toward
// numfds, but they are never reported to the engine.
//
// timeoutMS is the caller's overall budget for the call; -1 means no
// bound. The engine's own requested timeout further reduces each
// individual suspension.
func (r *Runtime) MultiWait(multi Multi, extra []PollFD, timeoutMS int64) (numfds int, code MultiCode) {
	r.logger.Debug().Int64("timeout", timeoutMS).Log("multi wait started")
	numfds, running, code := r.multiWait(multi, extra, timeoutMS)
	if code != MultiOK {
		numfds = 0
	}
	r.logger.Debug().
		Int("numfds", numfds).
		Int("running", running).
		Stringer("code", code).
		Log("multi wait finished")
	return numfds, code
}

func (r *Runtime) multiWait(multi Multi, extra []PollFD, timeoutMS int64) (numfds, running int, code MultiCode) {
	ctx := r.mustContext(multi)

	// the caller's timeout is a budget, reduced across iterations
	start := r.sched.MonotonicMSec()
	budget := timeoutMS

	for {
		// unconditional pre-advance; some engine builds miss progress
		// unless performed before every wait
		running, code = multi.Perform()
		r.logger.Debug().
			Int("running", running).
			Stringer("code", code).
			Log("multi advance")
		if code != MultiOK || running == 0 {
			return 0, running, code
		}

		if ctx.nfds == 0 && len(extra) == 0 {
			// no descriptors yet: sleep on the engine's timer instead of
			// busy-looping
			opTimeout := timeoutMin(ctx.timeoutMS, budget)
			r.logger.Debug().Int64("timeout", opTimeout).Log("multi delay")
			if err := r.sched.Delay(opTimeout); err != nil {
				r.logger.Debug().Err(err).Log("multi delay interrupted")
				return 0, running, MultiOutOfMemory
			}
			running, code = multi.SocketAction(SocketTimeout, SocketNone)
			r.logger.Debug().
				Int("running", running).
				Stringer("code", code).
				Log("multi socket action after delay")
			if code != MultiOK || running == 0 {
				return 0, running, code
			}
			if budget >= 0 {
				now := r.sched.MonotonicMSec()
				budget -= now - start
				if budget <= 0 {
					return 0, running, MultiOK
				}
				start = now
			}
			continue
		}

		fds := make([]PollFD, 0, ctx.nfds+len(extra))
		for _, slot := range ctx.order {
			rec := &ctx.slab[slot]
			fds = append(fds, PollFD{FD: rec.sockfd, Events: actionEvents(rec.action)})
		}
		fds = append(fds, extra...)

		opTimeout := timeoutMin(ctx.timeoutMS, budget)
		r.logger.Debug().
			Int("nfds", len(fds)).
			Int64("timeout", opTimeout).
			Log("multi poll")
		n, err := r.sched.Poll(fds, opTimeout)
		if err != nil {
			r.logger.Debug().Err(err).Log("multi poll interrupted")
			return 0, running, MultiOutOfMemory
		}
		for i := range extra {
			extra[i].REvents = fds[ctx.nfds+i].REvents
		}

		hit := false
		if n != 0 {
			for i := range fds[:ctx.nfds] {
				fd := &fds[i]
				se := observedEvents(fd.Events, fd.REvents)
				if se == SocketNone {
					continue
				}
				hit = true
				running, code = multi.SocketAction(fd.FD, se)
				r.logger.Debug().
					Int("sockfd", fd.FD).
					Int("running", running).
					Stringer("code", code).
					Log("multi socket action after poll")
				if code != MultiOK {
					// best-effort drain of the remaining descriptors
					continue
				}
				if running == 0 {
					return n, running, code
				}
			}
		}
		if !hit {
			running, code = multi.SocketAction(SocketTimeout, SocketNone)
			r.logger.Debug().
				Int("running", running).
				Stringer("code", code).
				Log("multi socket action after poll timeout")
			if code != MultiOK || running == 0 {
				return n, running, code
			}
		}
		return n, running, code
	}
}
