// Package curldriver bridges a libcurl-style multi-transfer engine to a
// cooperative task scheduler.
//
// The transfer engine exposes a callback-driven, non-blocking API: it tells
// its caller which descriptors it wants watched (and for which readiness
// conditions), what timeout currently applies, and expects to be notified of
// readiness events and advanced repeatedly until no transfers remain in
// flight. The scheduler's natural idiom is the opposite: suspend the current
// task until a descriptor is ready or a deadline elapses. This package
// translates between the two.
//
// # Architecture
//
// A [Runtime] owns the bridge state: a registry of per-multi contexts that
// the wait and cleanup paths use to locate driver state for a multi handle,
// plus the engine and scheduler bindings. Two usage modes share one core:
//
//   - [Runtime.EasyPerform] drives a single transfer to completion on the
//     current task, using a private, ephemeral multi handle.
//   - [Runtime.MultiWait] and [Runtime.MultiPerform] service a caller-owned
//     multi handle (created via [Runtime.MultiInit]), performing one bounded
//     wait step or one non-blocking step respectively.
//
// The engine and the scheduler are both consumed through small interfaces
// ([Engine], [Multi], [Scheduler]); [SysScheduler] is a ready-made scheduler
// backed by poll(2) for use outside of any bespoke runtime.
//
// # Suspension model
//
// All driver code runs on the calling task. The only suspension points are
// the scheduler's delay and poll primitives; engine entry points never
// yield. The effective timeout at any suspension point is the minimum of
// the engine-requested timeout and the caller's remaining budget, where -1
// means unbounded on either side.
//
// # Error model
//
// Transfer outcomes travel as [Code] and [MultiCode] values, mirroring the
// engine's own result-code vocabulary; they are not Go errors. Scheduler
// primitives return Go errors, and any non-nil error (cancellation
// included) is terminal for the current driver call. Driver-detected
// programming errors (a second watched descriptor on an easy transfer,
// closing a runtime with live multi handles) panic.
//
// # Logging
//
// The runtime logs engine interactions at debug level through a
// [github.com/joeycumines/logiface] logger, configured via [WithLogger].
// A nil logger disables logging.
package curldriver
