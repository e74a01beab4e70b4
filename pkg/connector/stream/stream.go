// Package stream adapts any io.ReadWriteCloser -- a serial device file, a
// net.Conn, a modem driver -- into a connector.Transport. When the underlying
// object supports deadlines, each blocking operation is bounded by the
// configured timeout.
package stream

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/theparadox00-ai/satlink/pkg/connector"
)

// deadliner is the subset of net.Conn needed to bound blocking IO.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Stream is a connector.Transport over a byte stream.
type Stream struct {
	rw      io.ReadWriteCloser
	timeout time.Duration
	closed  bool
}

// New wraps rw. A timeout of zero falls back to connector.DefaultTimeout.
// Timeouts only take effect if rw supports deadlines; plain files, such as
// serial devices opened in blocking mode, rely on the driver's own timeout.
func New(rw io.ReadWriteCloser, timeout time.Duration) *Stream {
	if timeout == 0 {
		timeout = connector.DefaultTimeout
	}
	return &Stream{rw: rw, timeout: timeout}
}

// Open opens a device file, such as /dev/ttyUSB0, as a Stream.
func Open(path string, timeout time.Duration) (*Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return New(f, timeout), nil
}

// Dial connects to a remote peer over the named network.
func Dial(network, address string, timeout time.Duration) (*Stream, error) {
	if timeout == 0 {
		timeout = connector.DefaultTimeout
	}
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, err
	}
	return New(conn, timeout), nil
}

// Listen waits for a single inbound connection on the named network. The
// link is point to point, so the listener is closed as soon as the first
// peer connects.
func Listen(network, address string, timeout time.Duration) (*Stream, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	return New(conn, timeout), nil
}

func (s *Stream) Send(p []byte) error {
	if s.closed {
		return net.ErrClosed
	}
	if d, ok := s.rw.(deadliner); ok {
		if err := d.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
	}
	n, err := s.rw.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (s *Stream) Receive(p []byte) error {
	if s.closed {
		return net.ErrClosed
	}
	if d, ok := s.rw.(deadliner); ok {
		if err := d.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
	}
	_, err := io.ReadFull(s.rw, p)
	return err
}

func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rw.Close()
}
