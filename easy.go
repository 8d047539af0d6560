package curldriver

// EasyPerform drives one transfer to completion on the current task,
// returning its result code. It blocks (cooperatively) until the transfer
// finishes, fails, or the task is cancelled.
//
// The transfer runs on a private multi handle that exists only for the
// duration of the call, so concurrent EasyPerform calls on different tasks
// are fully independent. The same easy handle must not be driven from two
// calls at once; an easy handle the engine reports as already owned
// elsewhere yields CodeAgain.
func (r *Runtime) EasyPerform(easy Easy) Code {
	r.logger.Debug().Log("easy perform started")
	code := r.easyPerform(easy)
	r.logger.Debug().Stringer("code", code).Log("easy perform finished")
	return code
}

func (r *Runtime) easyPerform(easy Easy) Code {
	multi := r.engine.NewMulti()
	if multi == nil {
		return CodeOutOfMemory
	}
	defer multi.Cleanup()

	ctx := newEasyContext(multi, r.sched.Current(), r.logger)

	// The engine can only report multi-level codes from here on; the easy
	// result stays CodeRecvError unless a completion message replaces it or
	// the add below is rejected as already owned (CodeAgain).
	code := CodeRecvError

	if mc := multi.Add(easy); mc != MultiOK {
		if mc == MultiAddedAlready {
			// the engine is busy with IO on this handle, and has no
			// better error code for that
			return CodeAgain
		}
		return code
	}
	defer multi.Remove(easy)

	for {
		// unconditional pre-advance; some engine builds miss progress
		// unless performed before every wait
		running, mc := multi.Perform()
		r.logger.Debug().
			Int("running", running).
			Stringer("code", mc).
			Log("easy advance")
		if mc != MultiOK {
			return code
		}
		if running == 0 {
			break
		}
		if ctx.sockfd == socketBad {
			// timer-only: the engine has not picked a descriptor yet
			r.logger.Debug().Int64("timeout", ctx.timeoutMS).Log("easy delay")
			if err := r.sched.Delay(ctx.timeoutMS); err != nil {
				r.logger.Debug().Err(err).Log("easy delay interrupted")
				return code
			}
			running, mc = multi.SocketAction(SocketTimeout, SocketNone)
			r.logger.Debug().
				Int("running", running).
				Stringer("code", mc).
				Log("easy socket action after delay")
			if running == 0 {
				break
			}
			if mc != MultiOK {
				return code
			}
		} else {
			r.logger.Debug().
				Int("sockfd", ctx.sockfd).
				Int64("timeout", ctx.timeoutMS).
				Log("easy poll")
			revents, err := r.sched.PollOne(ctx.sockfd, ctx.events, ctx.timeoutMS)
			if err != nil {
				r.logger.Debug().Err(err).Log("easy poll interrupted")
				return code
			}
			se := observedEvents(ctx.events, revents)
			if se == SocketNone {
				// spurious wake
				continue
			}
			running, mc = multi.SocketAction(ctx.sockfd, se)
			r.logger.Debug().
				Int("sockfd", ctx.sockfd).
				Int("running", running).
				Stringer("code", mc).
				Log("easy socket action after poll")
			if running == 0 {
				break
			}
			if mc != MultiOK {
				return code
			}
		}
	}

	if msg, _ := multi.InfoRead(); msg != nil {
		if msg.Easy != easy {
			panic("curldriver: completion message for a different easy handle")
		}
		code = msg.Result
	}
	return code
}
