// Package connector defines the byte transport between the device and its
// peer. The link is assumed to deliver bytes in order or fail outright; no
// retransmission or reordering is performed at this layer.
package connector

import "time"

// DefaultTimeout bounds every blocking Send and Receive. A timed-out
// operation surfaces as an ordinary error; no cancellation is supported
// mid-operation.
const DefaultTimeout = 5 * time.Second

// Transport sends and receives raw bytes over the point-to-point link.
//
// Implementations block the caller until the operation completes or times
// out. The handshake and messaging layers never run concurrently, so
// implementations need not be thread safe.
type Transport interface {
	// Send transmits all of p.
	Send(p []byte) error

	// Receive fills p with exactly len(p) bytes.
	Receive(p []byte) error

	// Close terminates the link. Repeated calls must be idempotent.
	Close() error
}
