package handshake

import (
	"github.com/theparadox00-ai/satlink/internal/memzero"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

// Session is the product of a successful handshake: a fresh symmetric key
// and the authenticated peer public key. It is the only way to obtain key
// material for a secure channel; a key that did not come out of a completed
// handshake cannot reach the messaging layer.
type Session struct {
	key        [protocol.SessionKeySize]byte
	peerPublic [protocol.PublicKeySize]byte
	destroyed  bool
}

// Key returns a copy of the session key. The caller owns the copy and must
// zeroize it when the session ends.
func (s *Session) Key() []byte {
	key := make([]byte, protocol.SessionKeySize)
	copy(key, s.key[:])
	return key
}

// PeerPublicKey returns a copy of the authenticated peer public key.
func (s *Session) PeerPublicKey() []byte {
	pub := make([]byte, protocol.PublicKeySize)
	copy(pub, s.peerPublic[:])
	return pub
}

// Destroy zeroizes the session key. The session is unusable afterwards.
func (s *Session) Destroy() {
	memzero.Zero(s.key[:])
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool {
	return s.destroyed
}
