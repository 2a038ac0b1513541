package ws

import (
	"io"
	"sync"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

// outbox serializes writes of encoded frames into the transport. Callers
// enqueue frames and then wait for them; the first waiter that finds the
// outbox idle becomes the single writer and drains the queue in FIFO order,
// including frames enqueued by others meanwhile.
type outbox struct {
	w io.Writer

	mu       sync.Mutex
	q        *queue.Queue
	flushing bool
	err      error
}

type pending struct {
	p    []byte
	done chan error
}

func newOutbox(w io.Writer) *outbox {
	return &outbox{
		w: w,
		q: queue.New(),
	}
}

// enqueue puts p to the end of the queue. The returned item must be passed to
// wait.
func (o *outbox) enqueue(p []byte) *pending {
	it := &pending{p: p, done: make(chan error, 1)}
	o.mu.Lock()
	o.q.Add(it)
	o.mu.Unlock()
	return it
}

// wait blocks until it is written or failed.
func (o *outbox) wait(it *pending) error {
	o.mu.Lock()
	if o.flushing {
		o.mu.Unlock()
		return <-it.done
	}
	o.flushing = true
	for o.q.Length() > 0 {
		next := o.q.Remove().(*pending)
		err := o.err
		o.mu.Unlock()

		if err == nil {
			if _, err = o.w.Write(next.p); err != nil {
				err = &TransportError{Err: errors.Wrap(err, "write")}
			}
		}
		next.done <- err

		o.mu.Lock()
		if err != nil && o.err == nil {
			o.err = err
		}
	}
	o.flushing = false
	o.mu.Unlock()

	return <-it.done
}

// size returns number of frames not yet taken by the writer.
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.q.Length()
}
