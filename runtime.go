package curldriver

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joeycumines/logiface"
)

// Runtime is the driver's per-runtime state: the engine and scheduler
// bindings, and the registry of contexts for live multi handles.
//
// A Runtime is single-threaded; all methods must be called from
// tasks of the one scheduler it was built with. Concurrency comes solely
// from the scheduler multiplexing tasks, and no method may be invoked
// concurrently for the same multi handle.
type Runtime struct {
	engine Engine
	sched  Scheduler
	logger *logiface.Logger[logiface.Event]
	// contexts holds one entry per live multi handle, latest first.
	contexts []*multiContext
}

// runtimeOptions holds configuration options for Runtime creation.
type runtimeOptions struct {
	engine Engine
	sched  Scheduler
	logger *logiface.Logger[logiface.Event]
}

// RuntimeOption configures a Runtime instance.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

// runtimeOptionImpl implements RuntimeOption.
type runtimeOptionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (o *runtimeOptionImpl) applyRuntime(opts *runtimeOptions) error {
	return o.applyRuntimeFunc(opts)
}

// WithEngine sets the transfer engine. Required.
func WithEngine(engine Engine) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		if engine == nil {
			return errors.New("curldriver: nil engine")
		}
		opts.engine = engine
		return nil
	}}
}

// WithScheduler sets the cooperative scheduler. Required.
func WithScheduler(sched Scheduler) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		if sched == nil {
			return errors.New("curldriver: nil scheduler")
		}
		opts.sched = sched
		return nil
	}}
}

// WithLogger sets the logger used for debug-level engine tracing. A nil
// logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// NewRuntime initialises a Runtime. An engine and a scheduler must be
// provided.
func NewRuntime(options ...RuntimeOption) (*Runtime, error) {
	var opts runtimeOptions
	for _, o := range options {
		if err := o.applyRuntime(&opts); err != nil {
			return nil, err
		}
	}
	if opts.engine == nil {
		return nil, errors.New("curldriver: an engine is required")
	}
	if opts.sched == nil {
		return nil, errors.New("curldriver: a scheduler is required")
	}
	return &Runtime{
		engine: opts.engine,
		sched:  opts.sched,
		logger: opts.logger,
	}, nil
}

// Close releases the Runtime. Every multi handle created via MultiInit must
// have been cleaned up first; a live handle at this point is a programming
// error and panics.
func (r *Runtime) Close() {
	if len(r.contexts) != 0 {
		panic(fmt.Sprintf("curldriver: runtime closed with %d live multi handle(s)", len(r.contexts)))
	}
	r.contexts = nil
}

// registerContext inserts at the front, so the latest handle wins the
// linear lookup.
func (r *Runtime) registerContext(c *multiContext) {
	r.contexts = slices.Insert(r.contexts, 0, c)
}

// lookupContext returns the context for a multi handle, or nil.
func (r *Runtime) lookupContext(multi Multi) *multiContext {
	for _, c := range r.contexts {
		if c.multi == multi {
			return c
		}
	}
	return nil
}

// mustContext returns the context for a live multi handle.
func (r *Runtime) mustContext(multi Multi) *multiContext {
	c := r.lookupContext(multi)
	if c == nil {
		panic("curldriver: no context registered for multi handle")
	}
	return c
}

// closeContext detaches and discards the context for a multi handle.
func (r *Runtime) closeContext(multi Multi) {
	c := r.mustContext(multi)
	leftover := c.scrub()
	i := slices.Index(r.contexts, c)
	r.contexts = slices.Delete(r.contexts, i, i+1)
	r.logger.Debug().Int("contexts", len(r.contexts)).Log("multi context closed")
	if leftover != 0 {
		panic(fmt.Sprintf("curldriver: multi handle cleaned up with %d descriptor(s) still watched", leftover))
	}
}

// ModuleInit performs process-wide engine initialisation. It should be
// called once, before any Runtime is created.
//
// When built.Num is non-zero, the running engine's version number is checked
// against it and a mismatch is logged at error level; the mismatch is not
// fatal, since interface-linked engines cannot break at link time the way
// a mislinked shared library would.
func ModuleInit(engine Engine, built VersionInfo, logger *logiface.Logger[logiface.Event]) error {
	if built.Num != 0 {
		if v := engine.Version(); v.Num != built.Num {
			logger.Err().
				Str("built", built.Version).
				Str("running", v.Version).
				Log("engine version mismatch")
		}
	}
	if err := engine.GlobalInit(); err != nil {
		return fmt.Errorf("curldriver: engine init failed: %w", err)
	}
	return nil
}

// ModuleShutdown undoes ModuleInit. All Runtimes must have been closed.
func ModuleShutdown(engine Engine) {
	engine.GlobalCleanup()
}
