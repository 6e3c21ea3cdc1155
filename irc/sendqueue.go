package irc

import (
	"io"
	"sync"
)

// sendQueue is the per-session outbound queue. Lines are transmitted in
// FIFO order; a write that only partially completes leaves the unsent
// remainder at the head with its byte offset recorded, and the next
// flush resumes from that exact offset.
type sendQueue struct {
	mu     sync.Mutex
	lines  [][]byte
	offset int // bytes of lines[0] already written
	closed bool
	wake   chan struct{}
}

func newSendQueue() *sendQueue {
	return &sendQueue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends one fully-formed line and signals the writer. Pushes
// after Close are dropped.
func (q *sendQueue) Push(line []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.lines = append(q.lines, line)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Flush writes queued lines to w until the queue is empty or w reports
// an error. A short write keeps the remainder queued at the head.
func (q *sendQueue) Flush(w io.Writer) error {
	for {
		q.mu.Lock()
		if len(q.lines) == 0 {
			q.mu.Unlock()
			return nil
		}
		head := q.lines[0]
		off := q.offset
		q.mu.Unlock()

		n, err := w.Write(head[off:])

		q.mu.Lock()
		q.offset += n
		if q.offset >= len(head) {
			q.lines = q.lines[1:]
			q.offset = 0
		}
		q.mu.Unlock()

		if err != nil {
			return err
		}
	}
}

// Len returns the number of lines still queued.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

// Close stops the writer once the queue has drained and rejects further
// pushes.
func (q *sendQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.wake)
}
