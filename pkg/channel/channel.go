// Package channel converts plaintext messages into authenticated, encrypted
// frames and moves them across the link.
//
// Each frame is transmitted as nonce, tag, ciphertext, then a detached
// signature over the plaintext digest made with the device's long-term
// identity key. The AEAD tag protects the ciphertext in transit; the
// signature binds the message to the hardware-backed identity independent of
// the session key, and does not cover the nonce or ciphertext.
package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/theparadox00-ai/satlink/internal/identity"
	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/internal/memzero"
	"github.com/theparadox00-ai/satlink/pkg/connector"
	"github.com/theparadox00-ai/satlink/pkg/handshake"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

// Channel is a secure messaging channel over an established session. It is
// owned by a single flow of control; no internal locking is performed.
type Channel struct {
	aead       cipher.AEAD
	key        []byte
	identity   identity.Store
	peerPublic []byte
	link       connector.Transport
	rng        io.Reader
	closed     bool
}

// New builds a Channel from a completed handshake. The session key is copied
// out of the session; callers that are done with the session itself should
// destroy it.
func New(session *handshake.Session, key protocol.Identity, link connector.Transport, rng io.Reader) (*Channel, error) {
	if session.Destroyed() {
		return nil, protocol.ErrChannelClosed
	}
	sessionKey := session.Key()
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		memzero.Zero(sessionKey)
		return nil, &protocol.EncryptionError{Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		memzero.Zero(sessionKey)
		return nil, &protocol.EncryptionError{Err: err}
	}
	return &Channel{
		aead:       aead,
		key:        sessionKey,
		identity:   key,
		peerPublic: session.PeerPublicKey(),
		link:       link,
		rng:        rng,
	}, nil
}

// Send encrypts, authenticates, and transmits one message. Nonce, tag,
// ciphertext, and signature are sent in that order; a failure at any step
// aborts the call with a typed error. Whether a failed Send is fatal to the
// process is the caller's policy, not the channel's.
func (c *Channel) Send(plaintext []byte) error {
	if c.closed {
		return protocol.ErrChannelClosed
	}
	if len(plaintext) == 0 {
		return protocol.ErrEmptyMessage
	}
	if len(plaintext) > protocol.MaxMessageSize {
		return protocol.ErrMessageTooLong
	}

	// Nonce uniqueness under this key rests entirely on the random source;
	// there is no reuse counter or tracker.
	nonce := make([]byte, protocol.NonceSize)
	if _, err := io.ReadFull(c.rng, nonce); err != nil {
		return &protocol.EncryptionError{Err: fmt.Errorf("generating nonce: %w", err)}
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(plaintext)]
	tag := sealed[len(plaintext):]

	if err := c.link.Send(nonce); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending nonce: %w", err)}
	}
	if err := c.link.Send(tag); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending tag: %w", err)}
	}
	if err := c.link.Send(ciphertext); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending ciphertext: %w", err)}
	}

	digest := sha256.Sum256(plaintext)
	signature, err := c.identity.Sign(digest)
	if err != nil {
		return &protocol.SigningError{Err: err}
	}
	if err := c.link.Send(signature); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending signature: %w", err)}
	}
	log.Debug("sent %d-byte frame", len(plaintext))
	return nil
}

// Receive reads one frame carrying a plaintext of the given length, decrypts
// it, and verifies the peer's signature over the plaintext digest. The link
// carries no length prefix, so the expected length comes from the
// application protocol.
func (c *Channel) Receive(length int) ([]byte, error) {
	if c.closed {
		return nil, protocol.ErrChannelClosed
	}
	if length <= 0 {
		return nil, protocol.ErrEmptyMessage
	}
	if length > protocol.MaxMessageSize {
		return nil, protocol.ErrMessageTooLong
	}

	nonce := make([]byte, protocol.NonceSize)
	if err := c.link.Receive(nonce); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("receiving nonce: %w", err)}
	}
	tag := make([]byte, protocol.TagSize)
	if err := c.link.Receive(tag); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("receiving tag: %w", err)}
	}
	ciphertext := make([]byte, length)
	if err := c.link.Receive(ciphertext); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("receiving ciphertext: %w", err)}
	}
	signature := make([]byte, protocol.SignatureSize)
	if err := c.link.Receive(signature); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("receiving signature: %w", err)}
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &protocol.AuthenticationError{Info: "frame rejected", Err: err}
	}
	digest := sha256.Sum256(plaintext)
	if err := identity.Verify(c.peerPublic, digest, signature); err != nil {
		memzero.Zero(plaintext)
		return nil, &protocol.AuthenticationError{Info: "message signature rejected", Err: err}
	}
	return plaintext, nil
}

// PeerPublicKey returns a copy of the authenticated peer public key.
func (c *Channel) PeerPublicKey() []byte {
	pub := make([]byte, len(c.peerPublic))
	copy(pub, c.peerPublic)
	return pub
}

// Close zeroizes the session key. The channel is unusable afterwards;
// repeated calls are no-ops.
func (c *Channel) Close() {
	if c.closed {
		return
	}
	c.closed = true
	memzero.Zero(c.key)
}
