package bus

import "sync"

// Subscriber receives every payload published to a topic it subscribed
// to.
type Subscriber func(topic string, payload any)

// MemoryBus is a minimal in-process Publisher: topic string equality,
// no wildcards, no persistence. It exists so cmd/exchange and this
// package's tests have something concrete to publish through without
// depending on a real broker, which spec.md §1 places out of scope to
// implement.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]Subscriber
}

// NewMemoryBus constructs an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]Subscriber)}
}

// Subscribe registers fn to receive every future Publish call on topic.
func (b *MemoryBus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Publish delivers payload to every current subscriber of topic,
// synchronously and in subscription order. Wrap a MemoryBus in a
// DeferredPublisher to get the re-entrancy-safe, asynchronous delivery
// spec.md §5 requires of the engine's own callback path.
func (b *MemoryBus) Publish(topic string, payload any) {
	b.mu.Lock()
	subs := append([]Subscriber(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(topic, payload)
	}
}
