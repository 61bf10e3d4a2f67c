package transfer

import "sync"

// DefaultQueueCapacity is the default number of transfers a TxQueue holds.
const DefaultQueueCapacity = 64

// TxQueue serializes outgoing transfers with one FIFO per priority level.
type TxQueue struct {
	Capacity int

	fifos   [PriorityLevels][]*Transfer
	size    int
	lock    sync.Mutex
	readyCh chan struct{}
}

// NewTxQueue creates a TxQueue.
func NewTxQueue(capacity int) *TxQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &TxQueue{Capacity: capacity, readyCh: make(chan struct{}, 1)}
}

// Push appends t to the FIFO of its priority.
func (q *TxQueue) Push(t *Transfer) error {
	prio := int(t.Priority)
	if prio >= PriorityLevels {
		prio = PriorityLevels - 1
	}
	q.lock.Lock()
	if q.size >= q.Capacity {
		q.lock.Unlock()
		return ErrBusy
	}
	q.fifos[prio] = append(q.fifos[prio], t)
	q.size++
	q.lock.Unlock()
	select {
	case q.readyCh <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest transfer of the most urgent non-empty FIFO.
// It returns nil when the queue is empty.
func (q *TxQueue) Pop() *Transfer {
	q.lock.Lock()
	defer q.lock.Unlock()
	for prio := range q.fifos {
		if fifo := q.fifos[prio]; len(fifo) > 0 {
			t := fifo[0]
			fifo[0] = nil
			q.fifos[prio] = fifo[1:]
			q.size--
			return t
		}
	}
	return nil
}

// Len returns the number of queued transfers.
func (q *TxQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

// Ready is signaled after a push.
func (q *TxQueue) Ready() <-chan struct{} {
	return q.readyCh
}
