package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods for categorizing handshake and channel failures.
type Error interface {
	error

	// Temporary returns true if the failure might clear on a full handshake
	// restart. Link faults are temporary; a failed signature verification is
	// not, since retrying with the same peer material cannot succeed.
	Temporary() bool
}

var (
	// ErrInvalidPublicKey indicates a peer presented a malformed or off-curve
	// public key. Public keys are NIST-P256 points in raw 64-byte X||Y form.
	ErrInvalidPublicKey = &AuthenticationError{Info: "invalid public key"}
	// ErrMessageTooLong indicates a plaintext exceeded MaxMessageSize. The
	// boundary check runs before any cryptographic operation.
	ErrMessageTooLong = &InputError{Info: fmt.Sprintf("message exceeds %d bytes", MaxMessageSize)}
	// ErrEmptyMessage indicates a zero-length plaintext was submitted.
	ErrEmptyMessage = &InputError{Info: "empty message"}
	// ErrHalted indicates the device has entered its terminal halted state
	// and performs no further link operations.
	ErrHalted = errors.New("device halted")
	// ErrChannelClosed indicates a secure channel was used after Close.
	ErrChannelClosed = errors.New("secure channel closed")
)

// TransportError wraps a send, receive, or timeout failure on the underlying
// link.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string   { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Temporary() bool { return true }

// AuthenticationError indicates signature verification failed or peer key
// material was rejected.
type AuthenticationError struct {
	Info string
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication: %s: %s", e.Info, e.Err)
	}
	return "authentication: " + e.Info
}
func (e *AuthenticationError) Unwrap() error   { return e.Err }
func (e *AuthenticationError) Temporary() bool { return false }

// KeyDerivationError indicates the ECDH exchange or session-key hashing
// failed.
type KeyDerivationError struct {
	Err error
}

func (e *KeyDerivationError) Error() string   { return "key derivation: " + e.Err.Error() }
func (e *KeyDerivationError) Unwrap() error   { return e.Err }
func (e *KeyDerivationError) Temporary() bool { return false }

// EncryptionError indicates an AEAD operation failed.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string   { return "encryption: " + e.Err.Error() }
func (e *EncryptionError) Unwrap() error   { return e.Err }
func (e *EncryptionError) Temporary() bool { return false }

// SigningError indicates the identity store could not produce a signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string   { return "signing: " + e.Err.Error() }
func (e *SigningError) Unwrap() error   { return e.Err }
func (e *SigningError) Temporary() bool { return false }

// InputError indicates a local input violated the channel's boundary
// contract, such as an oversized message.
type InputError struct {
	Info string
}

func (e *InputError) Error() string   { return "input: " + e.Info }
func (e *InputError) Temporary() bool { return false }

// Temporary returns true if err categorizes itself as possibly transient.
func Temporary(err error) bool {
	var perr Error
	if errors.As(err, &perr) {
		return perr.Temporary()
	}
	return false
}

// ShouldRetry returns true if a failed handshake attempt is worth repeating.
func ShouldRetry(err error) bool {
	return err != nil && Temporary(err)
}
