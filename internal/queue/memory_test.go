package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/gomar/internal/shared/logging"
)

func newTestBroker(leaseTimeout time.Duration) *MemoryBroker {
	return NewMemoryBroker(leaseTimeout, logging.Nop())
}

func TestMemoryBroker_PublishConsumeAck(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "tasks", []byte("hello")))
	assert.Equal(t, 1, b.Pending("tasks"))

	d, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), d.Payload)
	assert.Equal(t, "tasks", d.Topic)
	assert.Equal(t, 1, d.Deliveries)
	assert.Equal(t, 0, b.Pending("tasks"))
	assert.Equal(t, 1, b.InFlight())

	require.NoError(t, b.Ack(ctx, d.Handle))
	assert.Equal(t, 0, b.InFlight())
	assert.ErrorIs(t, b.Ack(ctx, d.Handle), ErrUnknownHandle)
}

func TestMemoryBroker_PublishCopiesPayload(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	payload := []byte("abc")
	require.NoError(t, b.Publish(ctx, "t", payload))
	payload[0] = 'x'

	d, err := b.Consume(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(d.Payload))
}

func TestMemoryBroker_TopicsAreIsolated(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "results.a", []byte("a")))
	require.NoError(t, b.Publish(ctx, "results.b", []byte("b")))

	d, err := b.Consume(ctx, "results.b")
	require.NoError(t, err)
	assert.Equal(t, "b", string(d.Payload))
	assert.Equal(t, 1, b.Pending("results.a"))
}

func TestMemoryBroker_ConsumeBlocksUntilPublish(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan *Delivery, 1)
	go func() {
		d, err := b.Consume(ctx, "tasks")
		if err == nil {
			got <- d
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Publish(ctx, "tasks", []byte("late")))

	select {
	case d := <-got:
		assert.Equal(t, "late", string(d.Payload))
	case <-ctx.Done():
		t.Fatal("consumer was not woken by publish")
	}
}

func TestMemoryBroker_ConsumeHonorsContext(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Consume(ctx, "empty")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_ExpiredLeaseIsRedelivered(t *testing.T) {
	b := newTestBroker(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "tasks", []byte("first")))
	require.NoError(t, b.Publish(ctx, "tasks", []byte("second")))

	d, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)
	require.Equal(t, "first", string(d.Payload))

	assert.Equal(t, 0, b.RequeueExpired(time.Now()), "lease must not expire early")
	assert.Equal(t, 1, b.RequeueExpired(time.Now().Add(time.Second)))

	redelivered, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, "first", string(redelivered.Payload), "redeliveries are served before fresh messages")
	assert.Equal(t, 2, redelivered.Deliveries)

	assert.ErrorIs(t, b.Ack(ctx, d.Handle), ErrUnknownHandle, "stale handle must not ack the new lease")
	require.NoError(t, b.Ack(ctx, redelivered.Handle))
}

func TestMemoryBroker_Nack(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "tasks", []byte("x")))
	d, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)

	require.NoError(t, b.Nack(ctx, d.Handle))
	assert.Equal(t, 1, b.Pending("tasks"))
	assert.ErrorIs(t, b.Nack(ctx, d.Handle), ErrUnknownHandle)
}

func TestMemoryBroker_RunReaper(t *testing.T) {
	b := newTestBroker(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, 5*time.Millisecond)

	require.NoError(t, b.Publish(ctx, "tasks", []byte("x")))
	_, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)

	consumeCtx, consumeCancel := context.WithTimeout(ctx, time.Second)
	defer consumeCancel()
	d, err := b.Consume(consumeCtx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Deliveries)
}

func TestMemoryBroker_Markers(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	marked, err := b.Marked(ctx, "cancel.job")
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, b.Mark(ctx, "cancel.job"))
	marked, err = b.Marked(ctx, "cancel.job")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestMemoryBroker_CloseWakesConsumers(t *testing.T) {
	b := newTestBroker(time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Go(func() {
			_, err := b.Consume(context.Background(), "tasks")
			errs <- err
		})
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrClosed)
	}
	assert.ErrorIs(t, b.Publish(context.Background(), "tasks", nil), ErrClosed)
	require.NoError(t, b.Close())
}

func TestMemoryBroker_ConcurrentConsumersGetDistinctMessages(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	const n = 50
	for i := range n {
		require.NoError(t, b.Publish(ctx, "tasks", []byte{byte(i)}))
	}

	var (
		mu   sync.Mutex
		seen = make(map[byte]int)
		wg   sync.WaitGroup
	)
	for range 5 {
		wg.Go(func() {
			for range n / 5 {
				d, err := b.Consume(ctx, "tasks")
				if err != nil {
					return
				}
				mu.Lock()
				seen[d.Payload[0]]++
				mu.Unlock()
				_ = b.Ack(ctx, d.Handle)
			}
		})
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestMemoryBroker_ExtendRenewsLease(t *testing.T) {
	b := newTestBroker(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "tasks", []byte("slow")))
	d, err := b.Consume(ctx, "tasks")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Extend(ctx, d.Handle))
	assert.Equal(t, 0, b.RequeueExpired(time.Now().Add(30*time.Millisecond)), "extended lease expired early")
	require.NoError(t, b.Ack(ctx, d.Handle))

	assert.ErrorIs(t, b.Extend(ctx, d.Handle), ErrUnknownHandle)
}

func TestMemoryBroker_PurgeDropsTopic(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "results.a", []byte("1")))
	require.NoError(t, b.Publish(ctx, "results.a", []byte("1")))
	require.NoError(t, b.Publish(ctx, "results.b", []byte("2")))
	d, err := b.Consume(ctx, "results.a")
	require.NoError(t, err)

	require.NoError(t, b.Purge(ctx, "results.a"))
	assert.Equal(t, 0, b.Pending("results.a"))
	assert.Equal(t, 0, b.InFlight())
	assert.Equal(t, 1, b.TopicCount())
	assert.ErrorIs(t, b.Ack(ctx, d.Handle), ErrUnknownHandle)

	require.NoError(t, b.Publish(ctx, "results.a", []byte("late")))
	assert.Equal(t, 0, b.Pending("results.a"), "late publish to a purged topic must be dropped")
	assert.Equal(t, 1, b.Pending("results.b"))
}

func TestMemoryBroker_MarkersExpire(t *testing.T) {
	b := newTestBroker(time.Minute)
	b.SetMarkerTTL(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.Mark(ctx, "cancel.job"))
	marked, err := b.Marked(ctx, "cancel.job")
	require.NoError(t, err)
	assert.True(t, marked)

	time.Sleep(30 * time.Millisecond)
	marked, err = b.Marked(ctx, "cancel.job")
	require.NoError(t, err)
	assert.False(t, marked)

	assert.Equal(t, 1, b.Sweep(time.Now()))
	assert.Equal(t, 0, b.MarkerCount())
}

func TestMemoryBroker_SweepReleasesFinishedJobs(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx := context.Background()

	const jobs = 1000
	for i := range jobs {
		results := fmt.Sprintf("results.%d", i)
		require.NoError(t, b.Publish(ctx, results, []byte("value")))
		require.NoError(t, b.Publish(ctx, results, []byte("value")))
		d, err := b.Consume(ctx, results)
		require.NoError(t, err)
		require.NoError(t, b.Ack(ctx, d.Handle))

		require.NoError(t, b.Mark(ctx, fmt.Sprintf("cancel.%d", i)))
		require.NoError(t, b.Purge(ctx, results))
	}

	assert.Equal(t, 0, b.TopicCount())
	assert.Equal(t, 0, b.InFlight())
	assert.Equal(t, jobs, b.MarkerCount())

	assert.Equal(t, 2*jobs, b.Sweep(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, b.MarkerCount())

	require.NoError(t, b.Publish(ctx, "results.0", []byte("reused")))
	assert.Equal(t, 1, b.Pending("results.0"), "purged topics are usable again after the TTL")
}

func TestMemoryBroker_SweepKeepsTopicsWithWaiters(t *testing.T) {
	b := newTestBroker(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan *Delivery, 1)
	go func() {
		d, err := b.Consume(ctx, "tasks")
		if err == nil {
			got <- d
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Publish(ctx, "idle", []byte("x")))
	d, err := b.Consume(ctx, "idle")
	require.NoError(t, err)
	require.NoError(t, b.Ack(ctx, d.Handle))

	assert.Equal(t, 1, b.Sweep(time.Now()), "only the idle topic is released")
	assert.Equal(t, 1, b.TopicCount())

	require.NoError(t, b.Publish(ctx, "tasks", []byte("wake")))
	select {
	case d := <-got:
		assert.Equal(t, "wake", string(d.Payload))
	case <-ctx.Done():
		t.Fatal("waiting consumer lost its topic")
	}
}

func TestMemoryBroker_RunSweepsMarkers(t *testing.T) {
	b := newTestBroker(time.Minute)
	b.SetMarkerTTL(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, 5*time.Millisecond)

	require.NoError(t, b.Mark(ctx, "cancel.job"))
	assert.Eventually(t, func() bool {
		return b.MarkerCount() == 0
	}, time.Second, 5*time.Millisecond)
}
