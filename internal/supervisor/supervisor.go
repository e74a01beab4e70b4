// Package supervisor owns the lifecycle of one secure link: it drives the
// handshake with bounded retries, hands traffic to the established channel,
// and fail-stops the node when a secure operation cannot be completed.
package supervisor

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"gopkg.in/retry.v1"

	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/pkg/channel"
	"github.com/theparadox00-ai/satlink/pkg/connector"
	"github.com/theparadox00-ai/satlink/pkg/handshake"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Config carries everything a Supervisor needs to bring a link up.
type Config struct {
	Key  protocol.Identity
	Link connector.Transport

	// Responder selects the answering side of the handshake. Exactly one
	// end of a link must set it.
	Responder bool

	// MaxAttempts bounds the number of handshake attempts before the
	// supervisor halts. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// RetryDelay is the pause between handshake attempts. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration

	// Rand is the entropy source for handshake challenges and frame
	// nonces. Zero means crypto/rand.Reader.
	Rand io.Reader

	// OnHalt, if set, runs once when the supervisor enters the halted
	// state. Embedded builds use it to park the node.
	OnHalt func(err error)
}

// Supervisor serializes all operations on the link. Once halted it stays
// halted; every further call returns ErrHalted.
type Supervisor struct {
	mu       sync.Mutex
	cfg      Config
	strategy retry.Strategy
	run      func() (*handshake.Session, error)
	channel  *channel.Channel
	halted   bool
	haltErr  error
}

// New builds a Supervisor over an unauthenticated link. Nothing touches the
// transport until Start.
func New(cfg Config) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	var engine *handshake.Engine
	if cfg.Responder {
		engine = handshake.NewResponder(cfg.Key, cfg.Link, cfg.Rand)
	} else {
		engine = handshake.New(cfg.Key, cfg.Link, cfg.Rand)
	}
	return &Supervisor{
		cfg: cfg,
		strategy: retry.LimitCount(cfg.MaxAttempts, retry.Regular{
			Min:   cfg.MaxAttempts,
			Delay: cfg.RetryDelay,
		}),
		run: engine.Run,
	}
}

// Start performs the handshake, retrying failed attempts up to the
// configured bound, and opens the secure channel. If every attempt fails the
// supervisor halts and the last handshake error is returned.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return protocol.ErrHalted
	}
	if s.channel != nil {
		return nil
	}

	var lastErr error
	for attempt := retry.Start(s.strategy, nil); attempt.Next(); {
		session, err := s.run()
		if err == nil {
			ch, err := channel.New(session, s.cfg.Key, s.cfg.Link, s.cfg.Rand)
			// The channel holds its own copy of the key now; wipe the
			// session's.
			session.Destroy()
			if err != nil {
				s.haltLocked(err)
				return err
			}
			s.channel = ch
			return nil
		}
		lastErr = err
		if attempt.More() {
			log.Warning("handshake attempt failed, retrying: %s", err)
		}
	}
	s.haltLocked(lastErr)
	return lastErr
}

// Send transmits one message over the established channel. Any channel
// failure other than a rejected input halts the supervisor.
func (s *Supervisor) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return protocol.ErrHalted
	}
	if s.channel == nil {
		return protocol.ErrChannelClosed
	}
	err := s.channel.Send(message)
	if err == nil {
		return nil
	}
	var inputErr *protocol.InputError
	if errors.As(err, &inputErr) {
		return err
	}
	s.haltLocked(err)
	return err
}

// Receive reads one message of the given plaintext length. Any channel
// failure other than a rejected input halts the supervisor.
func (s *Supervisor) Receive(length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return nil, protocol.ErrHalted
	}
	if s.channel == nil {
		return nil, protocol.ErrChannelClosed
	}
	message, err := s.channel.Receive(length)
	if err == nil {
		return message, nil
	}
	var inputErr *protocol.InputError
	if errors.As(err, &inputErr) {
		return nil, err
	}
	s.haltLocked(err)
	return nil, err
}

// PeerPublicKey returns the authenticated peer public key, or nil before the
// channel is up.
func (s *Supervisor) PeerPublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == nil {
		return nil
	}
	return s.channel.PeerPublicKey()
}

// Halted reports whether the supervisor has entered its terminal state.
func (s *Supervisor) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// HaltReason returns the error that forced the halt, or nil.
func (s *Supervisor) HaltReason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haltErr
}

// Close shuts the link down cleanly without treating it as a fault.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	return s.cfg.Link.Close()
}

func (s *Supervisor) haltLocked(err error) {
	if s.halted {
		return
	}
	s.halted = true
	s.haltErr = err
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	s.cfg.Link.Close()
	log.Error("secure link halted: %s", err)
	if s.cfg.OnHalt != nil {
		s.cfg.OnHalt(err)
	}
}
