package queue

import (
	"sync"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/mixbytes/randpa/types"
)

// Threaded is the production MessageQueue: one worker goroutine drains a
// FIFO behind a mutex and condition variable, exactly mirroring the
// original's message_queue<T> (spec.md §4.4, §5). Producers never block.
type Threaded struct {
	logger     log.Logger
	dispatcher Dispatcher

	mtx      sync.Mutex
	cond     *sync.Cond
	messages []Message
	done     bool

	wg sync.WaitGroup
}

// NewThreaded builds a Threaded queue feeding dispatcher.
func NewThreaded(dispatcher Dispatcher, logger log.Logger) *Threaded {
	q := &Threaded{
		logger:     logger,
		dispatcher: dispatcher,
	}
	q.cond = sync.NewCond(&q.mtx)
	return q
}

// Start launches the worker goroutine. Per spec.md §5, the worker suspends
// exactly once per iteration, on the queue's empty-and-not-terminated
// condition; every other operation (tree/round mutation) runs to
// completion synchronously.
func (q *Threaded) Start() {
	q.wg.Add(1)
	go q.loop()
}

// Stop sets the shutdown flag, wakes the worker, and joins it; any
// in-flight message is processed before exit (spec.md §5 "Cancellation and
// shutdown").
func (q *Threaded) Stop() {
	q.mtx.Lock()
	q.done = true
	q.mtx.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}

func (q *Threaded) PushNet(msg types.NetMessage) {
	q.push(Message{Net: &msg})
}

func (q *Threaded) PushEvent(ev types.Event) {
	q.push(Message{Event: &ev})
}

func (q *Threaded) push(msg Message) {
	q.mtx.Lock()
	q.messages = append(q.messages, msg)
	q.mtx.Unlock()
	q.cond.Signal()
}

func (q *Threaded) loop() {
	defer q.wg.Done()
	for {
		msg, ok := q.next()
		if !ok {
			return
		}
		if msg.Net != nil && expired(msg.Net.ReceiveTime) {
			if q.logger != nil {
				q.logger.Info("network message dropped, expired", "tag", msg.Net.Tag)
			}
			continue
		}
		q.dispatcher.Process(msg)
	}
}

// next blocks until a message is available or the queue is done, matching
// get_next_msg_wait's wait-on-condvar loop.
func (q *Threaded) next() (Message, bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	for len(q.messages) == 0 && !q.done {
		q.cond.Wait()
	}

	if len(q.messages) == 0 {
		return Message{}, false
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, true
}
