// Package sink implements the in-process signal bus: an append-only ring
// buffer of signals with fan-out subscriptions, named sliding windows, and
// pattern detection over window contents.
//
// Every operation is total: unknown names yield empty snapshots, eviction is
// idempotent, and no method returns an error.
package sink

import (
	"log/slog"
	"sync"
	"time"

	"github.com/axonworks/axon/pkg/adapters"
	"github.com/axonworks/axon/pkg/signal"
)

// Defaults for a bare sink.
const (
	// DefaultCapacity bounds the signal ring.
	DefaultCapacity = 1024

	// DefaultMaxAge bounds how long a signal stays in the ring.
	DefaultMaxAge = time.Hour

	// DefaultSubscriberQueue is the per-subscriber queue depth in async
	// dispatch mode.
	DefaultSubscriberQueue = 64
)

// Handler consumes one signal. In synchronous mode (the default) handlers
// run on the emitting goroutine and must return promptly; handlers that
// block should use an async sink.
type Handler func(signal.Signal)

// Options configures New.
type Options struct {
	// Capacity and MaxAge bound the ring. Zero selects the defaults.
	Capacity int
	MaxAge   time.Duration

	// Async dispatches to each subscriber through a bounded queue drained
	// by a dedicated goroutine. On overflow the oldest undelivered signal
	// is dropped and a sink.subscriber.drop signal is emitted.
	Async bool

	// SubscriberQueue is the queue depth in async mode. Zero selects
	// DefaultSubscriberQueue.
	SubscriberQueue int

	Clock  adapters.Clock
	Logger *slog.Logger
}

// Sink is safe for concurrent use by multiple producers and consumers.
type Sink struct {
	opts Options

	mu        sync.Mutex
	ring      []signal.Signal
	head      int
	count     int
	lastStamp time.Time
	subs      []*subscriber
	closed    bool

	windowsMu sync.RWMutex
	windows   map[string]*window

	wg sync.WaitGroup
}

// subscriber is one registered handler. queue is nil in synchronous mode.
type subscriber struct {
	handler Handler

	mu     sync.Mutex
	queue  chan signal.Signal
	closed bool
}

// Subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent.
type Subscription struct {
	sink *Sink
	sub  *subscriber
	once sync.Once
}

// New builds a sink. Zero-valued options select the defaults.
func New(opts Options) *Sink {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}

	if opts.SubscriberQueue <= 0 {
		opts.SubscriberQueue = DefaultSubscriberQueue
	}

	if opts.Clock == nil {
		opts.Clock = adapters.SystemClock{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Sink{
		opts:    opts,
		ring:    make([]signal.Signal, opts.Capacity),
		windows: make(map[string]*window),
	}
}

// Emit stamps sig, appends it to the ring, and notifies every subscriber
// registered at the moment of the append, in registration order. The stamp
// is strictly monotonic within this sink. Returns the stamped signal.
func (s *Sink) Emit(sig signal.Signal) signal.Signal {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return sig
	}

	now := s.opts.Clock.Now()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}

	s.lastStamp = now
	sig.EmittedAt = now

	s.evictExpired(now)
	s.append(sig)

	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)

	s.mu.Unlock()

	// Delivery happens outside the ring lock so handlers may read the sink
	// or emit derived signals without deadlocking.
	var drops []signal.Signal

	for _, sub := range subs {
		if sub.queue == nil {
			sub.handler(sig)

			continue
		}

		dropped, n := sub.enqueue(sig)
		if n > 0 && sig.Name != signal.SubscriberDrop {
			drops = append(drops, dropped)
		}
	}

	for _, dropped := range drops {
		s.opts.Logger.Warn("slow subscriber dropped signal",
			"dropped", dropped.Name,
			"source", dropped.Source)

		s.Emit(signal.Signal{
			Source: signal.SourceSystem,
			Name:   signal.SubscriberDrop,
			Key:    dropped.Name,
			Value:  dropped.Source,
		})
	}

	return sig
}

// Get returns the most recent signal in the ring with this name.
func (s *Sink) Get(name string) (signal.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := s.count - 1; i >= 0; i-- {
		sig := s.ring[(s.head+i)%len(s.ring)]
		if sig.Name == name {
			return sig, true
		}
	}

	return signal.Signal{}, false
}

// Value returns the payload of the most recent signal named name, typed.
// The second result is false when no such signal exists or its payload is
// not a T.
func Value[T any](s *Sink, name string) (T, bool) {
	sig, ok := s.Get(name)
	if !ok {
		var zero T

		return zero, false
	}

	v, ok := sig.Value.(T)

	return v, ok
}

// GetAll returns a snapshot of the ring, oldest first.
func (s *Sink) GetAll() []signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// GetSince returns the signals stamped strictly after t, oldest first.
func (s *Sink) GetSince(t time.Time) []signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []signal.Signal

	for i := range s.count {
		sig := s.ring[(s.head+i)%len(s.ring)]
		if sig.EmittedAt.After(t) {
			out = append(out, sig)
		}
	}

	return out
}

// Len returns the number of signals currently in the ring.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// Subscribe registers handler for every future emission and returns its
// subscription handle. Registration order is delivery order.
func (s *Sink) Subscribe(handler Handler) *Subscription {
	sub := &subscriber{handler: handler}

	if s.opts.Async {
		sub.queue = make(chan signal.Signal, s.opts.SubscriberQueue)

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			for sig := range sub.queue {
				handler(sig)
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = append(s.subs, sub)

	return &Subscription{sink: s, sub: sub}
}

// Unsubscribe removes the handler. Safe to call more than once; in-flight
// deliveries may still complete.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.sink.mu.Lock()

		for i, candidate := range sub.sink.subs {
			if candidate == sub.sub {
				sub.sink.subs = append(sub.sink.subs[:i], sub.sink.subs[i+1:]...)

				break
			}
		}

		sub.sink.mu.Unlock()

		sub.sub.close()
	})
}

// Close removes all subscribers and waits for async queues to drain. The
// sink accepts no emissions afterwards; reads keep working.
func (s *Sink) Close() {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return
	}

	s.closed = true
	subs := s.subs
	s.subs = nil

	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	s.wg.Wait()
}

// enqueue offers sig to the subscriber queue, dropping the oldest entries
// until it fits. Returns the last dropped signal and the drop count.
func (sb *subscriber) enqueue(sig signal.Signal) (dropped signal.Signal, n int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.closed {
		return signal.Signal{}, 0
	}

	for {
		select {
		case sb.queue <- sig:
			return dropped, n
		default:
		}

		select {
		case old := <-sb.queue:
			dropped = old
			n++
		default:
		}
	}
}

// close marks the subscriber closed and stops its drain goroutine.
func (sb *subscriber) close() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.closed {
		return
	}

	sb.closed = true

	if sb.queue != nil {
		close(sb.queue)
	}
}

// append inserts sig, evicting the oldest entry when the ring is full.
// Callers hold the lock.
func (s *Sink) append(sig signal.Signal) {
	if s.count == len(s.ring) {
		s.head = (s.head + 1) % len(s.ring)
		s.count--
	}

	s.ring[(s.head+s.count)%len(s.ring)] = sig
	s.count++
}

// evictExpired drops entries older than MaxAge. Callers hold the lock.
func (s *Sink) evictExpired(now time.Time) {
	for s.count > 0 {
		oldest := s.ring[s.head]
		if now.Sub(oldest.EmittedAt) <= s.opts.MaxAge {
			return
		}

		s.ring[s.head] = signal.Signal{}
		s.head = (s.head + 1) % len(s.ring)
		s.count--
	}
}

// snapshot copies the live ring, oldest first. Callers hold the lock.
func (s *Sink) snapshot() []signal.Signal {
	out := make([]signal.Signal, s.count)

	for i := range s.count {
		out[i] = s.ring[(s.head+i)%len(s.ring)]
	}

	return out
}
