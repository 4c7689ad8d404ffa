package queue

import "container/heap"

// Priority orders messages within a topic (lower value is served first).
type Priority int

const (
	PriorityRedelivery Priority = 0
	PriorityNormal     Priority = 1
)

type message struct {
	id         string
	topic      string
	payload    []byte
	deliveries int
}

// messageQueue is a min-heap of messages. Redelivered messages are served
// before fresh ones and messages of equal priority are served FIFO. It is
// not safe for concurrent use; the broker serializes access.
type messageQueue struct {
	items    itemHeap
	sequence uint64
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	heap.Init(&q.items)
	return q
}

func (q *messageQueue) push(msg *message, priority Priority) {
	heap.Push(&q.items, &item{
		msg:      msg,
		priority: priority,
		sequence: q.sequence,
	})
	q.sequence++
}

func (q *messageQueue) pop() (*message, bool) {
	if q.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*item).msg, true
}

func (q *messageQueue) len() int {
	return q.items.Len()
}

type item struct {
	msg      *message
	priority Priority
	sequence uint64 // Insertion order for FIFO within same priority
	index    int    // Required by heap.Interface
}

type itemHeap []*item

func (h itemHeap) Len() int {
	return len(h)
}

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].sequence < h[j].sequence
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[0 : n-1]
	return it
}
