// Package bus models the two external collaborators the matching core
// consumes but never implements: a generic "publish by topic" event bus
// and a "current simulation time" clock (spec.md §1 Non-goals, §5
// "External collaborators"). Publisher and Clock are the narrow
// contracts the adapter layer is written against; MemoryBus is a
// reference in-memory implementation and DeferredPublisher a queueing
// wrapper around any Publisher, both used by cmd/exchange and by this
// package's tests to observe published events without standing up a
// real broker.
package bus

import "time"

// Publisher delivers a payload under a topic to whatever subscribers
// the real bus implementation has. The adapter never assumes anything
// about delivery guarantees beyond "eventually, and not synchronously
// inside the call that produced the payload" (spec.md §5 re-entrancy
// rule).
type Publisher interface {
	Publish(topic string, payload any)
}

// Clock reports the current simulation time. A wall-clock
// implementation and a synthetic one (for replaying historical or
// accelerated simulations) both satisfy this with nothing more than
// Now.
type Clock interface {
	Now() time.Time
}

// WallClock is the trivial Clock backed by the real system clock.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }
