// Package dispatcher implements the single-consumer work queue that every
// device-bridge component (broadcaster, device server, stream bridge) uses
// to serialize its bus I/O and state transitions onto one goroutine.
//
// # Why
//
// Bus callbacks (subscription matched, data available) run on bus-owned
// threads and must return quickly: they are only allowed to set flags and
// signal. The actual work — scanning device handles, writing samples,
// driving state machines — happens on a dispatcher's single consumer
// goroutine instead, so two callbacks can never race on the same state.
//
// This generalizes a sync.Cond-guarded single-slot mailbox (one consumer
// goroutine, cooperative cancellation via context) from a single-slot
// "latest only" buffer to a bounded FIFO, because callers here need strict
// per-producer ordering, not latest-wins.
package dispatcher
