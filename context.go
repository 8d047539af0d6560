package curldriver

import (
	"slices"

	"github.com/joeycumines/logiface"
)

// socketBad marks an easy context as currently watching no descriptor.
const socketBad = -1

type (
	// easyContext is the per-transfer state for one EasyPerform call. It
	// is stack-scoped to that call; the multi handle it owns is created on
	// entry and destroyed on every exit path.
	easyContext struct {
		multi  Multi
		task   Task
		logger *logiface.Logger[logiface.Event]
		// sockfd is the single watched descriptor, or socketBad.
		sockfd int
		// events is the poll-event set the engine wants for sockfd.
		events IOEvents
		// timeoutMS is the most recent engine-requested delay; -1 means
		// no timer.
		timeoutMS int64
	}

	// pollfd is one watched descriptor of a multi context. Records live in
	// the context's slab from the engine's first add action on the
	// descriptor to its remove action; the slab index doubles as the
	// opaque token handed to the engine via Multi.Assign.
	pollfd struct {
		sockfd int
		action Action
	}

	// multiContext is the driver state for one caller-owned multi handle.
	// The engine's callbacks are bound to it directly; the wait and cleanup
	// paths locate it via the runtime registry.
	multiContext struct {
		multi  Multi
		logger *logiface.Logger[logiface.Event]
		slab   []pollfd
		// order holds the live slot indices in insertion order.
		order []int
		free  []int
		nfds  int
		// timeoutMS is the most recent engine-requested delay; -1 means
		// no timer.
		timeoutMS int64
	}
)

func newEasyContext(multi Multi, task Task, logger *logiface.Logger[logiface.Event]) *easyContext {
	c := &easyContext{
		multi:     multi,
		task:      task,
		logger:    logger,
		sockfd:    socketBad,
		timeoutMS: -1,
	}
	multi.SetCallbacks(c.socketCallback, c.timerCallback)
	return c
}

func (c *easyContext) socketCallback(_ Easy, sockfd int, what Action, _ int) {
	c.logger.Debug().
		Int("sockfd", sockfd).
		Stringer("action", what).
		Int64("timeout", c.timeoutMS).
		Log("easy socket callback")

	// an easy transfer watches at most one descriptor
	if c.sockfd != socketBad && c.sockfd != sockfd {
		panic("curldriver: easy context asked to watch a second descriptor")
	}

	if what != ActionRemove {
		c.sockfd = sockfd
	} else {
		c.sockfd = socketBad
	}
	c.events = actionEvents(what)
}

func (c *easyContext) timerCallback(timeoutMS int64) {
	c.logger.Debug().Int64("timeout", timeoutMS).Log("easy timer callback")
	c.timeoutMS = timeoutMS
}

func newMultiContext(multi Multi, logger *logiface.Logger[logiface.Event]) *multiContext {
	c := &multiContext{
		multi:     multi,
		logger:    logger,
		timeoutMS: -1,
	}
	multi.SetCallbacks(c.socketCallback, c.timerCallback)
	return c
}

func (c *multiContext) socketCallback(_ Easy, sockfd int, what Action, slot int) {
	c.logger.Debug().
		Int("sockfd", sockfd).
		Stringer("action", what).
		Int("nfds", c.nfds).
		Int64("timeout", c.timeoutMS).
		Log("multi socket callback")

	if what != ActionRemove {
		if slot == NoSlot {
			slot = c.addFD(sockfd)
			c.multi.Assign(sockfd, slot)
		}
		c.slab[slot].action = what
	} else {
		if slot == NoSlot {
			panic("curldriver: remove action for a descriptor that was never added")
		}
		c.removeFD(slot)
		c.multi.Assign(sockfd, NoSlot)
	}
}

func (c *multiContext) timerCallback(timeoutMS int64) {
	c.logger.Debug().Int64("timeout", timeoutMS).Log("multi timer callback")
	c.timeoutMS = timeoutMS
}

// addFD allocates a slab record for a newly watched descriptor, returning
// its slot index.
func (c *multiContext) addFD(sockfd int) int {
	var slot int
	if n := len(c.free); n != 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
		c.slab[slot] = pollfd{sockfd: sockfd}
	} else {
		slot = len(c.slab)
		c.slab = append(c.slab, pollfd{sockfd: sockfd})
	}
	c.order = append(c.order, slot)
	c.nfds++
	return slot
}

// removeFD releases the slab record at slot.
func (c *multiContext) removeFD(slot int) {
	i := slices.Index(c.order, slot)
	if i < 0 {
		panic("curldriver: remove action for an unknown slot")
	}
	c.order = slices.Delete(c.order, i, i+1)
	c.free = append(c.free, slot)
	c.nfds--
}

// scrub drops any leftover descriptor records, returning how many there
// were. The engine is expected to have emitted remove actions for every
// descriptor before its multi handle was cleaned up, so a non-zero return
// indicates an engine bug.
func (c *multiContext) scrub() int {
	leftover := c.nfds
	c.order = nil
	c.free = nil
	c.slab = nil
	c.nfds = 0
	return leftover
}
