// Package memzero wipes sensitive buffers such as session keys and ECDH
// shared secrets once they are no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a way the compiler will not elide.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
