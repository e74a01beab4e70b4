package identity

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"
)

func generateTestKey(t *testing.T) *NativeKey {
	t.Helper()
	key, err := Generate(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %s", err)
	}
	return key
}

func TestPublicBytesLength(t *testing.T) {
	key := generateTestKey(t)
	if len(key.PublicBytes()) != PublicKeySize {
		t.Errorf("Expected %d-byte public key, got %d", PublicKeySize, len(key.PublicBytes()))
	}
}

func TestSharedSecretSymmetry(t *testing.T) {
	alice := generateTestKey(t)
	bob := generateTestKey(t)

	aliceSecret, err := alice.Exchange(bob.PublicBytes())
	if err != nil {
		t.Fatalf("Alice failed to derive shared secret: %s", err)
	}
	bobSecret, err := bob.Exchange(alice.PublicBytes())
	if err != nil {
		t.Fatalf("Bob failed to derive shared secret: %s", err)
	}
	if len(aliceSecret) != SharedSecretSize {
		t.Errorf("Expected %d-byte shared secret, got %d", SharedSecretSize, len(aliceSecret))
	}
	if !bytes.Equal(aliceSecret, bobSecret) {
		t.Errorf("Shared secrets do not match")
	}
}

func TestExchangeRejectsInvalidPublicKey(t *testing.T) {
	key := generateTestKey(t)
	tests := [][]byte{
		nil,
		make([]byte, PublicKeySize-1),
		make([]byte, PublicKeySize+1),
		make([]byte, PublicKeySize), // point at infinity
		bytes.Repeat([]byte{0xff}, PublicKeySize),
	}
	for _, raw := range tests {
		if _, err := key.Exchange(raw); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("Expected ErrInvalidPublicKey for %d-byte input, got %v", len(raw), err)
		}
	}
}

func TestSignVerify(t *testing.T) {
	key := generateTestKey(t)
	digest := sha256.Sum256([]byte("challenge"))

	signature, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Failed to sign digest: %s", err)
	}
	if len(signature) != SignatureSize {
		t.Fatalf("Expected %d-byte signature, got %d", SignatureSize, len(signature))
	}
	if err := Verify(key.PublicBytes(), digest, signature); err != nil {
		t.Errorf("Signature failed to verify: %s", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	key := generateTestKey(t)
	digest := sha256.Sum256([]byte("challenge"))
	signature, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Failed to sign digest: %s", err)
	}

	for i := 0; i < SignatureSize; i++ {
		tampered := append([]byte{}, signature...)
		tampered[i] ^= 0x01
		if err := Verify(key.PublicBytes(), digest, tampered); err == nil {
			t.Fatalf("Tampered signature (byte %d) verified", i)
		}
	}

	wrongDigest := sha256.Sum256([]byte("other"))
	if err := Verify(key.PublicBytes(), wrongDigest, signature); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for wrong digest, got %v", err)
	}

	other := generateTestKey(t)
	if err := Verify(other.PublicBytes(), digest, signature); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature for wrong public key, got %v", err)
	}
}

func TestVerifyRejectsTruncatedSignature(t *testing.T) {
	key := generateTestKey(t)
	digest := sha256.Sum256([]byte("challenge"))
	if err := Verify(key.PublicBytes(), digest, make([]byte, SignatureSize-1)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	key := generateTestKey(t)
	filename := filepath.Join(t.TempDir(), "identity.pem")
	if err := key.SaveKeyFile(filename); err != nil {
		t.Fatalf("Failed to save key: %s", err)
	}
	loaded, err := LoadKeyFile(filename)
	if err != nil {
		t.Fatalf("Failed to load key: %s", err)
	}
	if !bytes.Equal(loaded.PublicBytes(), key.PublicBytes()) {
		t.Errorf("Loaded key has different public key")
	}
}

func TestLoadKeyFileMissing(t *testing.T) {
	if _, err := LoadKeyFile(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("Expected error loading missing key file")
	}
}

func TestPEMRoundTrip(t *testing.T) {
	key := generateTestKey(t)
	data, err := key.MarshalPEM()
	if err != nil {
		t.Fatalf("Failed to marshal key: %s", err)
	}
	loaded, err := UnmarshalPEM(data)
	if err != nil {
		t.Fatalf("Failed to unmarshal key: %s", err)
	}
	if !bytes.Equal(loaded.PublicBytes(), key.PublicBytes()) {
		t.Errorf("Unmarshaled key has different public key")
	}
}
