package identity

// Why not crypto/ecdh?
//
// The device's long-term key lives in a secure element and performs static
// ECDH. crypto/ecdh's API hands the private key around as a value, which a
// hardware-backed implementation can never do. Store keeps the private key
// behind method calls so that a secure-element driver can satisfy the
// interface without the key ever materializing in process memory.

import "errors"

const (
	// PublicKeySize is the length of a raw X||Y encoded NIST-P256 point.
	PublicKeySize = 64
	// SignatureSize is the length of a raw r||s encoded ECDSA signature.
	SignatureSize = 64
	// DigestSize is the length of a SHA-256 digest.
	DigestSize = 32
	// SharedSecretSize is the length of the ECDH shared secret (the x-coordinate).
	SharedSecretSize = 32
)

var (
	// ErrInvalidPublicKey is raised when a remote peer provides a malformed or
	// off-curve public key.
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrInvalidPrivateKey indicates the local peer tried to load an
	// unsupported or malformed private key.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrInvalidSignature indicates a signature did not verify against the
	// expected digest and public key.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Store represents the device's long-term identity key. The private half
// never leaves the implementation.
type Store interface {
	// PublicBytes returns the raw 64-byte X||Y encoding of the public key.
	PublicBytes() []byte
	// Sign produces a raw 64-byte r||s signature over digest using the held
	// private key.
	Sign(digest [DigestSize]byte) ([]byte, error)
	// Exchange computes the 32-byte ECDH shared secret from the held private
	// key and peerPublic (raw 64-byte X||Y).
	Exchange(peerPublic []byte) ([]byte, error)
}
