package queue

import (
	"context"
	"errors"
)

var (
	// ErrUnknownHandle is returned when acking or extending a delivery whose
	// lease already expired or was acked.
	ErrUnknownHandle = errors.New("unknown delivery handle")

	// ErrClosed is returned by operations on a closed broker.
	ErrClosed = errors.New("broker closed")
)

// Delivery is one leased message. Deliveries counts how many times the
// message has been handed out, starting at 1.
type Delivery struct {
	Topic      string
	Handle     string
	Payload    []byte
	Deliveries int
}

// Transport is an at-least-once topic queue. Consume blocks until a message
// is available and leases it to the caller; a message that is not acked
// before its lease expires is delivered again. Extend restarts the lease of
// a delivery that is still being processed.
//
// Purge drops a topic with everything queued or leased on it. Messages
// published to a purged topic for a while afterwards are discarded.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Consume(ctx context.Context, topic string) (*Delivery, error)
	Ack(ctx context.Context, handle string) error
	Extend(ctx context.Context, handle string) error
	Purge(ctx context.Context, topic string) error
}

// Markers is a set of keys visible to every client of the broker. It backs
// job cancellation. A marker lives for a broker-defined TTL.
type Markers interface {
	Mark(ctx context.Context, key string) error
	Marked(ctx context.Context, key string) (bool, error)
}

// Conn is a broker connection offering both queues and markers.
type Conn interface {
	Transport
	Markers
	Close() error
}
