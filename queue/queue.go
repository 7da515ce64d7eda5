// Package queue implements the MessageQueue of spec.md §4.4: a bounded*
// producer/consumer queue serializing all inbound messages and events onto
// a single worker.
//
// (*"Bounded" in the sense of backpressure policy -- stale messages are
// shed on dequeue -- not in capacity; spec.md §5 explicitly allows an
// unbounded backing queue.)
//
// Two implementations share one Dispatcher: Threaded (a mutex+condvar
// worker goroutine, for production) and Inline (synchronous, in-line
// processing, for deterministic tests). This reproduces the original's
// compile-time SYNC_RANDPA switch (spec.md §9 "Thread-or-inline duality")
// as two Go types implementing the same interface instead, since Go favors
// runtime composition over conditional compilation for this kind of
// swap.
package queue

import (
	"time"

	"github.com/mixbytes/randpa/types"
)

// Message is the queue's single outer wrapping type: exactly one of Net or
// Event is non-nil (spec.md §9).
type Message struct {
	Net   *types.NetMessage
	Event *types.Event
}

// Dispatcher is whatever consumes dequeued messages -- in production, the
// engine's Process method.
type Dispatcher interface {
	Process(Message)
}

// Queue is implemented by both Threaded and Inline.
type Queue interface {
	// PushNet enqueues an inbound network message, stamped with its
	// receive time by the caller (normally the adapter).
	PushNet(msg types.NetMessage)
	// PushEvent enqueues a host event.
	PushEvent(ev types.Event)
	// Start begins processing (a no-op for Inline).
	Start()
	// Stop drains and halts the queue (spec.md §5 "Cancellation and shutdown").
	Stop()
}

// MsgExpiration is the default backpressure policy window: messages older
// than this when dequeued are dropped rather than processed (spec.md §4.4,
// §6 msg_expiration_ms=2000).
const MsgExpiration = 2000 * time.Millisecond

func expired(receiveTime time.Time) bool {
	return !receiveTime.IsZero() && time.Since(receiveTime) > MsgExpiration
}
