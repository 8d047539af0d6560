package curldriver

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRuntime builds a Runtime over the given doubles.
func newTestRuntime(t *testing.T, engine Engine, sched Scheduler, options ...RuntimeOption) *Runtime {
	t.Helper()
	rt, err := NewRuntime(append([]RuntimeOption{WithEngine(engine), WithScheduler(sched)}, options...)...)
	require.NoError(t, err)
	return rt
}

// socketActionCall records one socket-action notification sent to a fake
// multi handle.
type socketActionCall struct {
	fd     int
	events SocketEvents
}

// fakeMulti is a scriptable engine multi handle. Tests drive its callback
// side via watch, and script its entry points via the *Fn hooks; anything
// left nil gets a benign default.
type fakeMulti struct {
	socketCB SocketFunc
	timerCB  TimerFunc

	// slots mirrors Assign state; watchOrder tracks currently assigned
	// descriptors in assignment order.
	slots      map[int]int
	watchOrder []int

	performFn      func() (int, MultiCode)
	socketActionFn func(fd int, events SocketEvents) (int, MultiCode)
	addFn          func(easy Easy) MultiCode
	cleanupFn      func() MultiCode

	messages []*Message

	performCalls  int
	infoReads     int
	socketActions []socketActionCall
	added         []Easy
	removed       []Easy
	cleanedUp     bool
}

func newFakeMulti() *fakeMulti {
	return &fakeMulti{slots: make(map[int]int)}
}

// watch emits a socket callback for fd the way the engine would, passing
// whatever slot token is currently assigned.
func (m *fakeMulti) watch(fd int, what Action) {
	slot, ok := m.slots[fd]
	if !ok {
		slot = NoSlot
	}
	m.socketCB(nil, fd, what, slot)
}

func (m *fakeMulti) setTimer(timeoutMS int64) {
	m.timerCB(timeoutMS)
}

func (m *fakeMulti) Perform() (int, MultiCode) {
	m.performCalls++
	if m.performFn != nil {
		return m.performFn()
	}
	return 0, MultiOK
}

func (m *fakeMulti) SocketAction(fd int, events SocketEvents) (int, MultiCode) {
	m.socketActions = append(m.socketActions, socketActionCall{fd, events})
	if m.socketActionFn != nil {
		return m.socketActionFn(fd, events)
	}
	return 0, MultiOK
}

func (m *fakeMulti) InfoRead() (*Message, int) {
	m.infoReads++
	if len(m.messages) == 0 {
		return nil, 0
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, len(m.messages)
}

func (m *fakeMulti) Add(easy Easy) MultiCode {
	m.added = append(m.added, easy)
	if m.addFn != nil {
		return m.addFn(easy)
	}
	return MultiOK
}

func (m *fakeMulti) Remove(easy Easy) MultiCode {
	m.removed = append(m.removed, easy)
	return MultiOK
}

func (m *fakeMulti) SetCallbacks(socket SocketFunc, timer TimerFunc) {
	m.socketCB, m.timerCB = socket, timer
}

func (m *fakeMulti) Assign(fd, slot int) MultiCode {
	if slot == NoSlot {
		delete(m.slots, fd)
		if i := slices.Index(m.watchOrder, fd); i >= 0 {
			m.watchOrder = slices.Delete(m.watchOrder, i, i+1)
		}
	} else {
		if _, ok := m.slots[fd]; !ok {
			m.watchOrder = append(m.watchOrder, fd)
		}
		m.slots[fd] = slot
	}
	return MultiOK
}

func (m *fakeMulti) Cleanup() MultiCode {
	if m.cleanupFn != nil {
		return m.cleanupFn()
	}
	// a well-behaved engine removes every watched descriptor on cleanup
	for len(m.watchOrder) != 0 {
		m.watch(m.watchOrder[0], ActionRemove)
	}
	m.cleanedUp = true
	return MultiOK
}

// fakeEngine is a scriptable transfer engine.
type fakeEngine struct {
	newMultiFn func() Multi
	initErr    error
	version    VersionInfo

	multis       []*fakeMulti
	initCalls    int
	cleanupCalls int
}

func (e *fakeEngine) GlobalInit() error {
	e.initCalls++
	return e.initErr
}

func (e *fakeEngine) GlobalCleanup() {
	e.cleanupCalls++
}

func (e *fakeEngine) NewMulti() Multi {
	if e.newMultiFn != nil {
		return e.newMultiFn()
	}
	m := newFakeMulti()
	e.multis = append(e.multis, m)
	return m
}

func (e *fakeEngine) Version() VersionInfo {
	return e.version
}

// pollOneCall records one single-descriptor poll.
type pollOneCall struct {
	fd        int
	events    IOEvents
	timeoutMS int64
}

// pollCall records one multi-descriptor poll, with the descriptor set as
// it was at call time.
type pollCall struct {
	fds       []PollFD
	timeoutMS int64
}

// scriptedScheduler is a deterministic Scheduler. Its clock only moves
// when a suspension consumes its timeout (or when a hook moves it), so
// tests can assert exact budget arithmetic.
type scriptedScheduler struct {
	now int64

	delayFn   func(timeoutMS int64) error
	pollOneFn func(fd int, events IOEvents, timeoutMS int64) (IOEvents, error)
	pollFn    func(fds []PollFD, timeoutMS int64) (int, error)

	delays   []int64
	pollOnes []pollOneCall
	polls    []pollCall
}

func (s *scriptedScheduler) Current() Task { return s }

func (s *scriptedScheduler) Delay(timeoutMS int64) error {
	s.delays = append(s.delays, timeoutMS)
	if s.delayFn != nil {
		return s.delayFn(timeoutMS)
	}
	if timeoutMS > 0 {
		s.now += timeoutMS
	}
	return nil
}

func (s *scriptedScheduler) PollOne(fd int, events IOEvents, timeoutMS int64) (IOEvents, error) {
	s.pollOnes = append(s.pollOnes, pollOneCall{fd, events, timeoutMS})
	if s.pollOneFn != nil {
		return s.pollOneFn(fd, events, timeoutMS)
	}
	if timeoutMS > 0 {
		s.now += timeoutMS
	}
	return 0, nil
}

func (s *scriptedScheduler) Poll(fds []PollFD, timeoutMS int64) (int, error) {
	s.polls = append(s.polls, pollCall{slices.Clone(fds), timeoutMS})
	if s.pollFn != nil {
		return s.pollFn(fds, timeoutMS)
	}
	if timeoutMS > 0 {
		s.now += timeoutMS
	}
	return 0, nil
}

func (s *scriptedScheduler) MonotonicMSec() int64 { return s.now }
