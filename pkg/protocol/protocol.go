// Package protocol defines the wire constants and error taxonomy shared by
// the handshake and secure-messaging layers.
//
// All fields on the wire are fixed-size raw bytes; there is no framing or
// length prefix beyond what the fixed sizes imply. Handshake order:
//
//	send local public key   (64)
//	recv peer public key    (64)
//	send local challenge    (32)
//	recv peer signature     (64)
//	recv peer challenge     (32)
//	send local signature    (64)
//
// Message frames are nonce (12), tag (16), ciphertext (at most 127 bytes,
// equal to the plaintext length), then a detached 64-byte signature over the
// plaintext digest.
package protocol

import "github.com/theparadox00-ai/satlink/internal/identity"

const (
	// PublicKeySize is the raw X||Y encoding of a P-256 public key.
	PublicKeySize = identity.PublicKeySize
	// SignatureSize is the raw r||s encoding of an ECDSA signature.
	SignatureSize = identity.SignatureSize
	// ChallengeSize is the length of the random nonce each side signs to
	// prove possession of its private key.
	ChallengeSize = 32
	// SessionKeySize is the length of the AES-GCM session key derived from
	// the ECDH shared secret.
	SessionKeySize = 16
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
	// MaxMessageSize caps the plaintext length of a single message frame.
	MaxMessageSize = 127
)
