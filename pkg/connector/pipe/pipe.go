// Package pipe provides an in-memory connector.Transport pair for tests and
// examples. Bytes written on one end are buffered until the other end reads
// them, so both peers can transmit before either receives -- matching the
// behavior of a full-duplex serial link.
package pipe

import (
	"os"
	"sync"
	"time"

	"github.com/theparadox00-ai/satlink/pkg/connector"
)

// Pipe is one end of an in-memory duplex byte stream.
type Pipe struct {
	in      *buffer
	out     *buffer
	timeout time.Duration
}

// New returns two connected transports. Data sent on a arrives at b and vice
// versa.
func New() (a, b *Pipe) {
	atob := newBuffer()
	btoa := newBuffer()
	a = &Pipe{in: btoa, out: atob, timeout: connector.DefaultTimeout}
	b = &Pipe{in: atob, out: btoa, timeout: connector.DefaultTimeout}
	return a, b
}

// SetTimeout overrides the receive timeout for this end.
func (p *Pipe) SetTimeout(d time.Duration) {
	p.timeout = d
}

func (p *Pipe) Send(buf []byte) error {
	return p.out.write(buf)
}

func (p *Pipe) Receive(buf []byte) error {
	return p.in.read(buf, p.timeout)
}

func (p *Pipe) Close() error {
	p.in.close()
	p.out.close()
	return nil
}

// buffer is an unbounded byte queue with blocking, deadline-bounded reads.
type buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	closed bool
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *buffer) write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return os.ErrClosed
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return nil
}

func (b *buffer) read(p []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) < len(p) {
		if b.closed {
			return os.ErrClosed
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return os.ErrDeadlineExceeded
		}
		// sync.Cond has no timed wait; a timer wakes the reader so it can
		// observe the expired deadline.
		timer := time.AfterFunc(remaining, b.cond.Broadcast)
		b.cond.Wait()
		timer.Stop()
	}
	copy(p, b.data[:len(p)])
	b.data = b.data[len(p):]
	return nil
}

func (b *buffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
