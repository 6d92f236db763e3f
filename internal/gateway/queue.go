package gateway

// pendingQueue buffers serialized outbound frames while the channel is
// closed. Bounded: when full, the incoming (newest) frame is rejected so
// the queue never exceeds capacity.
type pendingQueue struct {
	items [][]byte
	cap   int
}

func newPendingQueue(cap int) *pendingQueue {
	return &pendingQueue{cap: cap}
}

// push appends data unless the queue is at capacity. Returns false on
// overflow; the caller raises the overflow notification.
func (q *pendingQueue) push(data []byte) bool {
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, data)
	return true
}

// drain returns all queued frames oldest first and empties the queue.
func (q *pendingQueue) drain() [][]byte {
	items := q.items
	q.items = nil
	return items
}

func (q *pendingQueue) clear() {
	q.items = nil
}

func (q *pendingQueue) len() int {
	return len(q.items)
}
