package bus

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// queueSize mirrors the teacher's TASK_CHAN_SIZE: a bounded buffer so a
// burst of up to queueSize callback-driven publishes (one engine
// dispatch can produce many trade/fill events in a single call) does
// not block the caller on delivery; beyond that, Publish waits for
// buffer space.
const queueSize = 256

type publishTask struct {
	topic   string
	payload any
}

// DeferredPublisher satisfies spec.md §5's re-entrancy rule: publish
// only enqueues (waiting at most for buffer space), so an engine callback that calls
// Publish can never be re-entered synchronously by whatever the
// downstream publisher's delivery does. Delivery happens on a
// tomb-supervised goroutine draining the queue, adapted from the
// teacher's internal/worker.go WorkerPool (there, the pool drains
// accepted TCP connections; here it drains queued topic/payload pairs
// instead).
//
// Exactly one goroutine ever calls downstream.Publish, regardless of
// how many workers are configured. A channel only guarantees each
// enqueued task is received once; with more than one concurrent
// receiver, goroutine scheduling rather than enqueue order decides
// which Publish call lands first downstream, which would break spec.md
// §5's ordering guarantee ("one acknowledgement, then for each match
// segment ... then an optional L2 snapshot", all for a single
// dispatch). A single delivery goroutine is the only way to keep that
// promise without a sequencer in front of the downstream Publisher.
type DeferredPublisher struct {
	downstream Publisher
	n          int
	queue      chan publishTask
	t          tomb.Tomb
}

// NewDeferredPublisher wraps downstream with a queue drained by a
// single in-order delivery goroutine. n is accepted for API symmetry
// with configuration that expects a pool size, but only ever yields one
// delivery goroutine — see the ordering note on DeferredPublisher.
func NewDeferredPublisher(downstream Publisher, n int) *DeferredPublisher {
	return &DeferredPublisher{
		downstream: downstream,
		n:          n,
		queue:      make(chan publishTask, queueSize),
	}
}

// Start launches the single delivery goroutine. It returns immediately;
// call Stop (or cancel the tomb externally) to drain and shut it down.
func (p *DeferredPublisher) Start() {
	log.Info().Int("workers", p.n).Msg("starting deferred publisher")
	if p.n > 1 {
		log.Warn().
			Int("workers", p.n).
			Msg("deferred publisher always delivers on a single goroutine to preserve spec.md §5 ordering; configured worker count above 1 has no effect")
	}
	p.t.Go(p.worker)
}

// Stop signals the delivery goroutine to wind down and waits for any
// in-flight delivery to finish.
func (p *DeferredPublisher) Stop() error {
	p.t.Kill(nil)
	return p.t.Wait()
}

func (p *DeferredPublisher) worker() error {
	for {
		// Drain whatever is already queued before honoring a kill
		// signal, so Stop() never discards work that was enqueued
		// before it was called.
		select {
		case task := <-p.queue:
			p.deliver(task)
			continue
		default:
		}
		select {
		case <-p.t.Dying():
			return nil
		case task := <-p.queue:
			p.deliver(task)
		}
	}
}

func (p *DeferredPublisher) deliver(task publishTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("topic", task.topic).
				Interface("panic", r).
				Msg("downstream publisher panicked; event dropped")
		}
	}()
	p.downstream.Publish(task.topic, task.payload)
}

// Publish enqueues topic/payload for asynchronous delivery. It never
// blocks the caller on delivery itself; if the queue is momentarily
// full it blocks only on buffer space, never on a subscriber.
func (p *DeferredPublisher) Publish(topic string, payload any) {
	select {
	case p.queue <- publishTask{topic: topic, payload: payload}:
	case <-p.t.Dying():
		log.Warn().Str("topic", topic).Msg("publish dropped: pool is shutting down")
	}
}
