package channel_test

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/theparadox00-ai/satlink/internal/identity"
	"github.com/theparadox00-ai/satlink/mocks"
	"github.com/theparadox00-ai/satlink/pkg/channel"
	"github.com/theparadox00-ai/satlink/pkg/connector/pipe"
	"github.com/theparadox00-ai/satlink/pkg/handshake"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

func newIdentity() protocol.Identity {
	key, err := identity.Generate(rand.Reader)
	Expect(err).NotTo(HaveOccurred())
	return key
}

// establishSessions runs a real handshake between the two keys and returns
// the resulting sessions.
func establishSessions(aliceKey, bobKey protocol.Identity) (*handshake.Session, *handshake.Session) {
	aliceLink, bobLink := pipe.New()
	defer aliceLink.Close()

	type result struct {
		session *handshake.Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		session, err := handshake.NewResponder(bobKey, bobLink, rand.Reader).Run()
		done <- result{session, err}
	}()
	aliceSession, err := handshake.New(aliceKey, aliceLink, rand.Reader).Run()
	Expect(err).NotTo(HaveOccurred())
	bobResult := <-done
	Expect(bobResult.err).NotTo(HaveOccurred())
	return aliceSession, bobResult.session
}

var _ = Describe("Channel", func() {
	var (
		ctrl         *gomock.Controller
		aliceKey     protocol.Identity
		bobKey       protocol.Identity
		aliceSession *handshake.Session
		bobSession   *handshake.Session
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		aliceKey = newIdentity()
		bobKey = newIdentity()
		aliceSession, bobSession = establishSessions(aliceKey, bobKey)
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Context("over a live link", func() {
		var (
			alice *channel.Channel
			bob   *channel.Channel
		)

		BeforeEach(func() {
			aliceLink, bobLink := pipe.New()
			var err error
			alice, err = channel.New(aliceSession, aliceKey, aliceLink, rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			bob, err = channel.New(bobSession, bobKey, bobLink, rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				alice.Close()
				bob.Close()
				aliceLink.Close()
			})
		})

		It("round trips a short message", func() {
			message := []byte("PING")
			Expect(alice.Send(message)).To(Succeed())
			received, err := bob.Receive(len(message))
			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(Equal(message))
		})

		It("round trips in both directions", func() {
			Expect(alice.Send([]byte("PING"))).To(Succeed())
			received, err := bob.Receive(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(Equal([]byte("PING")))

			Expect(bob.Send([]byte("PONG"))).To(Succeed())
			received, err = alice.Receive(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(Equal([]byte("PONG")))
		})

		It("round trips a maximum-length message", func() {
			message := bytes.Repeat([]byte{'x'}, protocol.MaxMessageSize)
			Expect(alice.Send(message)).To(Succeed())
			received, err := bob.Receive(len(message))
			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(Equal(message))
		})

		It("reports authenticated peer public keys", func() {
			Expect(alice.PeerPublicKey()).To(Equal(bobKey.PublicBytes()))
			Expect(bob.PeerPublicKey()).To(Equal(aliceKey.PublicBytes()))
		})
	})

	Context("framing", func() {
		// readFrame drains one complete frame from the raw peer end of the
		// link.
		readFrame := func(link *pipe.Pipe, length int) (nonce, tag, ciphertext, signature []byte) {
			nonce = make([]byte, protocol.NonceSize)
			tag = make([]byte, protocol.TagSize)
			ciphertext = make([]byte, length)
			signature = make([]byte, protocol.SignatureSize)
			Expect(link.Receive(nonce)).To(Succeed())
			Expect(link.Receive(tag)).To(Succeed())
			Expect(link.Receive(ciphertext)).To(Succeed())
			Expect(link.Receive(signature)).To(Succeed())
			return
		}

		It("uses a fresh nonce for every frame", func() {
			aliceLink, rawLink := pipe.New()
			defer aliceLink.Close()
			alice, err := channel.New(aliceSession, aliceKey, aliceLink, rand.Reader)
			Expect(err).NotTo(HaveOccurred())

			message := []byte("repeat after me")
			Expect(alice.Send(message)).To(Succeed())
			firstNonce, _, firstCiphertext, _ := readFrame(rawLink, len(message))
			Expect(alice.Send(message)).To(Succeed())
			secondNonce, _, secondCiphertext, _ := readFrame(rawLink, len(message))

			Expect(secondNonce).NotTo(Equal(firstNonce))
			Expect(secondCiphertext).NotTo(Equal(firstCiphertext))
		})

		// deliver replays a captured frame, with an optional mutation, into a
		// channel built over a mock link.
		deliver := func(pieces [][]byte) *mocks.MockTransport {
			link := mocks.NewMockTransport(ctrl)
			link.EXPECT().Receive(gomock.Any()).DoAndReturn(func(p []byte) error {
				copy(p, pieces[0])
				pieces = pieces[1:]
				return nil
			}).Times(len(pieces))
			return link
		}

		capture := func(message []byte) (nonce, tag, ciphertext, signature []byte) {
			aliceLink, rawLink := pipe.New()
			defer aliceLink.Close()
			alice, err := channel.New(aliceSession, aliceKey, aliceLink, rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			Expect(alice.Send(message)).To(Succeed())
			return readFrame(rawLink, len(message))
		}

		It("rejects a frame with a corrupted tag", func() {
			message := []byte("hands off")
			nonce, tag, ciphertext, signature := capture(message)
			tag[0] ^= 1

			bob, err := channel.New(bobSession, bobKey, deliver([][]byte{nonce, tag, ciphertext, signature}), rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			_, err = bob.Receive(len(message))
			var authErr *protocol.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(protocol.ShouldRetry(err)).To(BeFalse())
		})

		It("rejects a frame with a corrupted ciphertext", func() {
			message := []byte("hands off")
			nonce, tag, ciphertext, signature := capture(message)
			ciphertext[3] ^= 0x80

			bob, err := channel.New(bobSession, bobKey, deliver([][]byte{nonce, tag, ciphertext, signature}), rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			_, err = bob.Receive(len(message))
			var authErr *protocol.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
		})

		It("rejects a frame with a corrupted signature", func() {
			message := []byte("hands off")
			nonce, tag, ciphertext, signature := capture(message)
			signature[10] ^= 1

			bob, err := channel.New(bobSession, bobKey, deliver([][]byte{nonce, tag, ciphertext, signature}), rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			_, err = bob.Receive(len(message))
			var authErr *protocol.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.Info).To(ContainSubstring("signature"))
		})

		It("rejects a frame signed by a third party", func() {
			message := []byte("who goes there")
			nonce, tag, ciphertext, _ := capture(message)

			// Valid ciphertext under the session key, but signed by an
			// identity bob never authenticated.
			mallory := newIdentity()
			forged, err := mallory.Sign(sha256.Sum256(message))
			Expect(err).NotTo(HaveOccurred())

			bob, err := channel.New(bobSession, bobKey, deliver([][]byte{nonce, tag, ciphertext, forged}), rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			_, err = bob.Receive(len(message))
			var authErr *protocol.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
		})
	})

	Context("input validation", func() {
		var (
			link  *mocks.MockTransport
			alice *channel.Channel
		)

		BeforeEach(func() {
			// No expectations are registered: any traffic fails the test.
			link = mocks.NewMockTransport(ctrl)
			var err error
			alice, err = channel.New(aliceSession, aliceKey, link, rand.Reader)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an empty message without touching the link", func() {
			Expect(alice.Send(nil)).To(MatchError(protocol.ErrEmptyMessage))
		})

		It("rejects an oversized message without touching the link", func() {
			message := bytes.Repeat([]byte{'x'}, protocol.MaxMessageSize+1)
			Expect(alice.Send(message)).To(MatchError(protocol.ErrMessageTooLong))
		})

		It("rejects oversized receive lengths without touching the link", func() {
			_, err := alice.Receive(protocol.MaxMessageSize + 1)
			Expect(err).To(MatchError(protocol.ErrMessageTooLong))
		})

		It("rejects non-positive receive lengths", func() {
			_, err := alice.Receive(0)
			Expect(err).To(MatchError(protocol.ErrEmptyMessage))
		})
	})

	Context("failure paths", func() {
		It("maps link failures during send to retryable transport errors", func() {
			link := mocks.NewMockTransport(ctrl)
			link.EXPECT().Send(gomock.Any()).Return(fmt.Errorf("modem carrier lost"))
			alice, err := channel.New(aliceSession, aliceKey, link, rand.Reader)
			Expect(err).NotTo(HaveOccurred())

			err = alice.Send([]byte("hello"))
			var transportErr *protocol.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(protocol.ShouldRetry(err)).To(BeTrue())
		})

		It("maps link failures during receive to retryable transport errors", func() {
			link := mocks.NewMockTransport(ctrl)
			link.EXPECT().Receive(gomock.Any()).Return(fmt.Errorf("modem carrier lost"))
			alice, err := channel.New(aliceSession, aliceKey, link, rand.Reader)
			Expect(err).NotTo(HaveOccurred())

			_, err = alice.Receive(4)
			var transportErr *protocol.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(protocol.ShouldRetry(err)).To(BeTrue())
		})

		It("surfaces identity signing failures", func() {
			key := mocks.NewMockStore(ctrl)
			key.EXPECT().Sign(gomock.Any()).Return(nil, fmt.Errorf("secure element busy"))
			link := mocks.NewMockTransport(ctrl)
			link.EXPECT().Send(gomock.Any()).Return(nil).Times(3)
			alice, err := channel.New(aliceSession, key, link, rand.Reader)
			Expect(err).NotTo(HaveOccurred())

			err = alice.Send([]byte("hello"))
			var signErr *protocol.SigningError
			Expect(errors.As(err, &signErr)).To(BeTrue())
			Expect(protocol.ShouldRetry(err)).To(BeFalse())
		})

		It("surfaces nonce generation failures as encryption errors", func() {
			link := mocks.NewMockTransport(ctrl)
			alice, err := channel.New(aliceSession, aliceKey, link, brokenReader{})
			Expect(err).NotTo(HaveOccurred())

			err = alice.Send([]byte("hello"))
			var encErr *protocol.EncryptionError
			Expect(errors.As(err, &encErr)).To(BeTrue())
		})
	})

	Context("lifecycle", func() {
		It("refuses a destroyed session", func() {
			aliceSession.Destroy()
			_, err := channel.New(aliceSession, aliceKey, mocks.NewMockTransport(ctrl), rand.Reader)
			Expect(err).To(MatchError(protocol.ErrChannelClosed))
		})

		It("refuses use after close", func() {
			alice, err := channel.New(aliceSession, aliceKey, mocks.NewMockTransport(ctrl), rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			alice.Close()
			Expect(alice.Send([]byte("hello"))).To(MatchError(protocol.ErrChannelClosed))
			_, err = alice.Receive(4)
			Expect(err).To(MatchError(protocol.ErrChannelClosed))
		})
	})
})

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("entropy pool exhausted")
}
