package queue

import "github.com/mixbytes/randpa/types"

// Inline is the synchronous MessageQueue variant used by deterministic
// tests and the simulator (spec.md §9 "Thread-or-inline duality"): pushes
// process immediately, on the caller's goroutine, with no worker --
// matching the original's SYNC_RANDPA compile switch, but expressed as a
// second Queue implementation rather than a build tag. Inline has no
// re-entrancy guard: if processing a message leads synchronously to another
// push (as over hostsim's in-memory transport), Process is re-entered.
type Inline struct {
	dispatcher Dispatcher
}

func NewInline(dispatcher Dispatcher) *Inline {
	return &Inline{dispatcher: dispatcher}
}

func (q *Inline) Start() {}
func (q *Inline) Stop()  {}

func (q *Inline) PushNet(msg types.NetMessage) {
	if expired(msg.ReceiveTime) {
		return
	}
	q.dispatcher.Process(Message{Net: &msg})
}

func (q *Inline) PushEvent(ev types.Event) {
	q.dispatcher.Process(Message{Event: &ev})
}
