// Package handshake establishes mutual authentication with the remote peer
// and derives a fresh session key before any application traffic flows.
//
// The exchange is strictly ordered and never reordered: public keys first,
// then the local challenge, then verification of the peer's response, then
// the peer's challenge and the local response, and finally ECDH key
// derivation. A single round of challenges lets each side prove possession
// of its claimed private key while reusing the already-exchanged public keys
// for the ECDH step.
package handshake

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/theparadox00-ai/satlink/internal/identity"
	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/internal/memzero"
	"github.com/theparadox00-ai/satlink/pkg/connector"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

// Role selects which side of the challenge exchange this engine plays. The
// two sides of a link must use opposite roles: the initiator challenges
// first, the responder answers before issuing its own challenge. Byte order
// on the wire is otherwise identical.
type Role int

const (
	Initiator Role = iota
	Responder
)

// Engine runs the handshake over a transport. A single Engine may be run
// repeatedly; each run is independent and derives a fresh session key.
type Engine struct {
	key  identity.Store
	link connector.Transport
	rng  io.Reader
	role Role
}

// New creates an initiating Engine. rng must produce cryptographically
// uniform bytes; use crypto/rand.Reader in production.
func New(key protocol.Identity, link connector.Transport, rng io.Reader) *Engine {
	return &Engine{key: key, link: link, rng: rng, role: Initiator}
}

// NewResponder creates an Engine for the answering side of the link.
func NewResponder(key protocol.Identity, link connector.Transport, rng io.Reader) *Engine {
	return &Engine{key: key, link: link, rng: rng, role: Responder}
}

// Run performs one complete handshake. On failure the whole run is aborted
// with a typed error; the engine never retries a step in place. The caller
// decides whether to restart the sequence.
func (e *Engine) Run() (*Session, error) {
	peerPublic, err := e.exchangePublicKeys()
	if err != nil {
		return nil, err
	}
	if e.role == Initiator {
		if err := e.proveFreshness(peerPublic); err != nil {
			return nil, err
		}
		if err := e.answerPeerChallenge(); err != nil {
			return nil, err
		}
	} else {
		if err := e.answerPeerChallenge(); err != nil {
			return nil, err
		}
		if err := e.proveFreshness(peerPublic); err != nil {
			return nil, err
		}
	}
	session, err := e.deriveSession(peerPublic)
	if err != nil {
		return nil, err
	}
	log.Info("handshake established")
	return session, nil
}

func (e *Engine) exchangePublicKeys() ([]byte, error) {
	if err := e.link.Send(e.key.PublicBytes()); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("sending public key: %w", err)}
	}
	peerPublic := make([]byte, protocol.PublicKeySize)
	if err := e.link.Receive(peerPublic); err != nil {
		return nil, &protocol.TransportError{Err: fmt.Errorf("receiving peer public key: %w", err)}
	}
	log.Debug("exchanged public keys")
	return peerPublic, nil
}

// proveFreshness sends a random challenge and verifies the peer's signature
// over its digest. The peer public key is untrusted until this succeeds.
func (e *Engine) proveFreshness(peerPublic []byte) error {
	var challenge [protocol.ChallengeSize]byte
	if _, err := io.ReadFull(e.rng, challenge[:]); err != nil {
		return &protocol.KeyDerivationError{Err: fmt.Errorf("generating challenge: %w", err)}
	}
	if err := e.link.Send(challenge[:]); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending challenge: %w", err)}
	}
	signature := make([]byte, protocol.SignatureSize)
	if err := e.link.Receive(signature); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("receiving challenge response: %w", err)}
	}
	digest := sha256.Sum256(challenge[:])
	if err := identity.Verify(peerPublic, digest, signature); err != nil {
		return &protocol.AuthenticationError{Info: "peer challenge response rejected", Err: err}
	}
	log.Debug("peer authenticated")
	return nil
}

// answerPeerChallenge receives the peer's challenge and returns a signature
// over its digest, produced by the identity store without exposing the
// private key.
func (e *Engine) answerPeerChallenge() error {
	peerChallenge := make([]byte, protocol.ChallengeSize)
	if err := e.link.Receive(peerChallenge); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("receiving peer challenge: %w", err)}
	}
	digest := sha256.Sum256(peerChallenge)
	signature, err := e.key.Sign(digest)
	if err != nil {
		return &protocol.SigningError{Err: err}
	}
	if err := e.link.Send(signature); err != nil {
		return &protocol.TransportError{Err: fmt.Errorf("sending challenge response: %w", err)}
	}
	return nil
}

// deriveSession computes the ECDH shared secret with the now-authenticated
// peer key and hashes it down to the session key.
func (e *Engine) deriveSession(peerPublic []byte) (*Session, error) {
	secret, err := e.key.Exchange(peerPublic)
	if err != nil {
		return nil, &protocol.KeyDerivationError{Err: err}
	}
	digest := sha256.Sum256(secret)
	memzero.Zero(secret)

	session := &Session{}
	copy(session.key[:], digest[:protocol.SessionKeySize])
	copy(session.peerPublic[:], peerPublic)
	memzero.Zero(digest[:])
	return session, nil
}
