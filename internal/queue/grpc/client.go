package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/nemanja-m/gomar/internal/queue"
	"github.com/nemanja-m/gomar/internal/shared/config"
)

const DefaultPollWait = 10 * time.Second

// Client is a queue.Conn backed by a remote broker.
type Client struct {
	conn     *grpc.ClientConn
	pollWait time.Duration
	addr     string
}

var _ queue.Conn = (*Client)(nil)

func NewClient(cfg config.QueueConnConfig, opts ...grpc.DialOption) (*Client, error) {
	keepaliveTime := cfg.KeepaliveTime
	if keepaliveTime <= 0 {
		keepaliveTime = 30 * time.Second
	}
	keepaliveTimeout := cfg.KeepaliveTimeout
	if keepaliveTimeout <= 0 {
		keepaliveTimeout = 5 * time.Second
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(
			keepalive.ClientParameters{
				Time:                keepaliveTime,
				Timeout:             keepaliveTimeout,
				PermitWithoutStream: true,
			},
		),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	pollWait := cfg.PollWait
	if pollWait <= 0 {
		pollWait = DefaultPollWait
	}

	return &Client{conn: conn, pollWait: pollWait, addr: cfg.Addr}, nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	req := &publishRequest{Topic: topic, Payload: payload}
	if err := c.conn.Invoke(ctx, methodPublish, req, &empty{}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, fromStatus(err))
	}
	return nil
}

// Consume long-polls the broker until a message arrives or ctx ends.
func (c *Client) Consume(ctx context.Context, topic string) (*queue.Delivery, error) {
	req := &consumeRequest{Topic: topic, WaitMillis: uint64(c.pollWait.Milliseconds())}
	for {
		resp := &consumeResponse{}
		if err := c.conn.Invoke(ctx, methodConsume, req, resp); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to consume from %s: %w", topic, fromStatus(err))
		}
		if resp.Found {
			return &queue.Delivery{
				Topic:      topic,
				Handle:     resp.Handle,
				Payload:    resp.Payload,
				Deliveries: int(resp.Deliveries),
			}, nil
		}
	}
}

func (c *Client) Ack(ctx context.Context, handle string) error {
	if err := c.conn.Invoke(ctx, methodAck, &ackRequest{Handle: handle}, &empty{}); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", fromStatus(err))
	}
	return nil
}

// Extend renews the lease of a delivery that is still being processed.
func (c *Client) Extend(ctx context.Context, handle string) error {
	if err := c.conn.Invoke(ctx, methodExtend, &ackRequest{Handle: handle}, &empty{}); err != nil {
		return fmt.Errorf("failed to extend delivery: %w", fromStatus(err))
	}
	return nil
}

func (c *Client) Purge(ctx context.Context, topic string) error {
	if err := c.conn.Invoke(ctx, methodPurge, &purgeRequest{Topic: topic}, &empty{}); err != nil {
		return fmt.Errorf("failed to purge %s: %w", topic, fromStatus(err))
	}
	return nil
}

func (c *Client) Mark(ctx context.Context, key string) error {
	if err := c.conn.Invoke(ctx, methodMark, &markRequest{Key: key}, &empty{}); err != nil {
		return fmt.Errorf("failed to set marker %s: %w", key, fromStatus(err))
	}
	return nil
}

func (c *Client) Marked(ctx context.Context, key string) (bool, error) {
	resp := &markedResponse{}
	if err := c.conn.Invoke(ctx, methodMarked, &markRequest{Key: key}, resp); err != nil {
		return false, fmt.Errorf("failed to check marker %s: %w", key, fromStatus(err))
	}
	return resp.Marked, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// fromStatus maps broker status codes back onto queue errors.
func fromStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", queue.ErrUnknownHandle, err)
	case codes.Unavailable:
		if s, ok := status.FromError(err); ok && s.Message() == queue.ErrClosed.Error() {
			return queue.ErrClosed
		}
	}
	return err
}
