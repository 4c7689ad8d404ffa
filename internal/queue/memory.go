package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/internal/shared/logging"
)

const (
	DefaultLeaseTimeout = 30 * time.Second

	// markerLeases is the default marker TTL in lease timeouts.
	markerLeases = 10
)

// MemoryBroker is an in-process Transport and Markers implementation. It is
// the broker behind the gRPC server and the local cluster.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]*topic
	leases map[string]*lease
	// markers and purged map a key to the time it expires.
	markers map[string]time.Time
	purged  map[string]time.Time
	closed  bool
	done    chan struct{}

	leaseTimeout time.Duration
	markerTTL    time.Duration
	logger       logging.Logger
}

type topic struct {
	queue *messageQueue
	// ready is closed and replaced on every publish to wake blocked consumers.
	ready   chan struct{}
	waiters int
}

type lease struct {
	msg       *message
	expiresAt time.Time
}

func NewMemoryBroker(leaseTimeout time.Duration, logger logging.Logger) *MemoryBroker {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}
	return &MemoryBroker{
		topics:       make(map[string]*topic),
		leases:       make(map[string]*lease),
		markers:      make(map[string]time.Time),
		purged:       make(map[string]time.Time),
		done:         make(chan struct{}),
		leaseTimeout: leaseTimeout,
		markerTTL:    markerLeases * leaseTimeout,
		logger:       logger,
	}
}

// SetMarkerTTL sets how long markers and purged topics are remembered.
// Non-positive values keep the default of ten lease timeouts.
func (b *MemoryBroker) SetMarkerTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markerTTL = ttl
}

func (b *MemoryBroker) topic(name string) *topic {
	t, exists := b.topics[name]
	if !exists {
		t = &topic{queue: newMessageQueue(), ready: make(chan struct{})}
		b.topics[name] = t
	}
	return t
}

func (b *MemoryBroker) enqueue(msg *message, priority Priority) {
	t := b.topic(msg.topic)
	t.queue.push(msg, priority)
	close(t.ready)
	t.ready = make(chan struct{})
}

func (b *MemoryBroker) Publish(_ context.Context, topicName string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if expiresAt, purged := b.purged[topicName]; purged && time.Now().Before(expiresAt) {
		b.logger.Debug("Dropped message for purged topic", "topic", topicName)
		return nil
	}

	msg := &message{
		id:      uuid.NewString(),
		topic:   topicName,
		payload: append([]byte(nil), payload...),
	}
	b.enqueue(msg, PriorityNormal)
	return nil
}

func (b *MemoryBroker) Consume(ctx context.Context, topicName string) (*Delivery, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		t := b.topic(topicName)
		if msg, ok := t.queue.pop(); ok {
			msg.deliveries++
			handle := uuid.NewString()
			b.leases[handle] = &lease{msg: msg, expiresAt: time.Now().Add(b.leaseTimeout)}
			b.mu.Unlock()

			return &Delivery{
				Topic:      topicName,
				Handle:     handle,
				Payload:    msg.payload,
				Deliveries: msg.deliveries,
			}, nil
		}
		ready := t.ready
		t.waiters++
		b.mu.Unlock()

		err := b.wait(ctx, ready)

		b.mu.Lock()
		t.waiters--
		b.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func (b *MemoryBroker) wait(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	case <-ready:
		return nil
	}
}

func (b *MemoryBroker) Ack(_ context.Context, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.leases[handle]; !exists {
		return ErrUnknownHandle
	}
	delete(b.leases, handle)
	return nil
}

// Extend restarts the lease of handle from now.
func (b *MemoryBroker) Extend(_ context.Context, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, exists := b.leases[handle]
	if !exists {
		return ErrUnknownHandle
	}
	l.expiresAt = time.Now().Add(b.leaseTimeout)
	return nil
}

// Nack releases a lease early so the message is redelivered right away.
func (b *MemoryBroker) Nack(_ context.Context, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, exists := b.leases[handle]
	if !exists {
		return ErrUnknownHandle
	}
	delete(b.leases, handle)
	b.enqueue(l.msg, PriorityRedelivery)
	return nil
}

// Purge drops topicName together with its queued and leased messages and
// discards whatever is published to it until the marker TTL passes.
func (b *MemoryBroker) Purge(_ context.Context, topicName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	dropped := 0
	if t, exists := b.topics[topicName]; exists {
		dropped = t.queue.len()
		delete(b.topics, topicName)
		close(t.ready)
	}
	for handle, l := range b.leases {
		if l.msg.topic == topicName {
			delete(b.leases, handle)
			dropped++
		}
	}
	b.purged[topicName] = time.Now().Add(b.markerTTL)

	b.logger.Debug("Topic purged", "topic", topicName, "dropped", dropped)
	return nil
}

func (b *MemoryBroker) Mark(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markers[key] = time.Now().Add(b.markerTTL)
	return nil
}

func (b *MemoryBroker) Marked(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiresAt, exists := b.markers[key]
	return exists && time.Now().Before(expiresAt), nil
}

// RequeueExpired puts every message whose lease expired before now back at
// the head of its topic and returns how many were requeued.
func (b *MemoryBroker) RequeueExpired(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	requeued := 0
	for handle, l := range b.leases {
		if now.Before(l.expiresAt) {
			continue
		}
		delete(b.leases, handle)
		b.enqueue(l.msg, PriorityRedelivery)
		requeued++
	}
	return requeued
}

// Sweep forgets markers and purged topics whose TTL ended before now, and
// drops empty topics nobody is waiting on. It returns how many entries were
// released.
func (b *MemoryBroker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	released := 0
	for key, expiresAt := range b.markers {
		if !now.Before(expiresAt) {
			delete(b.markers, key)
			released++
		}
	}
	for name, expiresAt := range b.purged {
		if !now.Before(expiresAt) {
			delete(b.purged, name)
			released++
		}
	}
	for name, t := range b.topics {
		if t.queue.len() == 0 && t.waiters == 0 {
			delete(b.topics, name)
			released++
		}
	}
	return released
}

// Run requeues expired leases and sweeps stale state every interval until
// ctx is done.
func (b *MemoryBroker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case now := <-ticker.C:
			if n := b.RequeueExpired(now); n > 0 {
				b.logger.Info("Requeued expired deliveries", "count", n)
			}
			if n := b.Sweep(now); n > 0 {
				b.logger.Debug("Released broker state", "count", n)
			}
		}
	}
}

// Pending returns the number of messages waiting in topicName.
func (b *MemoryBroker) Pending(topicName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, exists := b.topics[topicName]
	if !exists {
		return 0
	}
	return t.queue.len()
}

// TopicCount returns the number of topics the broker currently holds.
func (b *MemoryBroker) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// MarkerCount returns the number of markers not yet swept.
func (b *MemoryBroker) MarkerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.markers)
}

// InFlight returns the number of leased, unacked messages.
func (b *MemoryBroker) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.leases)
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
