package protocol

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	type testCase struct {
		err       error
		temporary bool
	}
	tests := []testCase{
		{&TransportError{Err: io.EOF}, true},
		{&AuthenticationError{Info: "bad signature"}, false},
		{&KeyDerivationError{Err: errors.New("ecdh failed")}, false},
		{&EncryptionError{Err: errors.New("aead failed")}, false},
		{&SigningError{Err: errors.New("secure element fault")}, false},
		{ErrMessageTooLong, false},
		{ErrInvalidPublicKey, false},
		{errors.New("uncategorized"), false},
	}
	for _, test := range tests {
		if Temporary(test.err) != test.temporary {
			t.Errorf("Temporary(%v) != %v", test.err, test.temporary)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("ShouldRetry(nil) should be false")
	}
	if !ShouldRetry(&TransportError{Err: io.ErrUnexpectedEOF}) {
		t.Error("Transport errors should be retried")
	}
	if ShouldRetry(&AuthenticationError{Info: "bad signature"}) {
		t.Error("Authentication errors should not be retried")
	}
	wrapped := fmt.Errorf("handshake attempt: %w", &TransportError{Err: io.EOF})
	if !ShouldRetry(wrapped) {
		t.Error("Wrapped transport errors should be retried")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("link down")
	err := fmt.Errorf("step failed: %w", &TransportError{Err: cause})
	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Error("errors.As should find the TransportError")
	}
}
