// This file holds package documentation only.

// Package event provides the synchronous pub-sub bus a mission session uses to
// notify the UI layer.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Events
//
//   - [SessionChangedEvent]: a new immutable session value was accepted
//   - [CommandFailedEvent]: a control action failed; the session is unchanged
//   - [InconsistencyEvent]: an update was refused by the state machine
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeSessionChanged, func(e event.Event) {
//	    changed := e.(event.SessionChangedEvent)
//	    render(changed.Session)
//	})
//
// Handlers run on the publisher's goroutine. Handlers that do slow work
// should hand it off (for example with tea.Program.Send).
package event
