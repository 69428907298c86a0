// Package event carries outbound notifications from the orchestrator to
// observers such as the journal, the console and the control API.
//
// The orchestrator never reads from the bus; it only publishes. Inbound
// signals travel on the engine's own channel.
//
// # Event types
//
//   - lifecycle.changed, lifecycle.rejected
//   - mode.changed, mood.changed
//   - guard.rejected, result.dropped
//   - config.applied, presence.judged
//   - idle.prolonged, speech.queued
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publisher's goroutine and are protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeLifecycleChanged, func(e event.Event) {
//	    changed := e.(event.LifecycleChangedEvent)
//	    fmt.Println(changed.From, "->", changed.To)
//	})
package event
