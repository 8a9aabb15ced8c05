package worker

import (
	"sync"

	"github.com/ignite/listmonk-relay/internal/mailersend"
)

// OutgoingBuffer accumulates emails between dispatch cycles. It is
// unbounded and memory-resident: whatever it holds is lost if the process
// dies.
type OutgoingBuffer struct {
	mu     sync.Mutex
	emails []mailersend.Email
}

// NewOutgoingBuffer creates an empty buffer.
func NewOutgoingBuffer() *OutgoingBuffer {
	return &OutgoingBuffer{}
}

// EnqueueAll appends emails as one atomic step.
func (b *OutgoingBuffer) EnqueueAll(emails []mailersend.Email) {
	if len(emails) == 0 {
		return
	}
	b.mu.Lock()
	b.emails = append(b.emails, emails...)
	b.mu.Unlock()
}

// DrainAll swaps the buffer for an empty one and returns what it held.
// Every enqueued email is returned by exactly one drain.
func (b *OutgoingBuffer) DrainAll() []mailersend.Email {
	b.mu.Lock()
	drained := b.emails
	b.emails = nil
	b.mu.Unlock()
	return drained
}

// Len returns the number of buffered emails.
func (b *OutgoingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.emails)
}
