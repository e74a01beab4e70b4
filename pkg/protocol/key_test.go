package protocol

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func TestPublicKeyBytesFromHex(t *testing.T) {
	key, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate identity: %s", err)
	}
	encoded := hex.EncodeToString(key.PublicBytes())

	raw, err := PublicKeyBytesFromHex(encoded)
	if err != nil {
		t.Fatalf("Failed to decode valid public key: %s", err)
	}
	if !bytes.Equal(raw, key.PublicBytes()) {
		t.Error("Decoded key does not match original")
	}

	if _, err := PublicKeyBytesFromHex("not hex"); err == nil {
		t.Error("Expected error for non-hex input")
	}
	if _, err := PublicKeyBytesFromHex(encoded[:64]); err == nil {
		t.Error("Expected error for truncated key")
	}
	if _, err := PublicKeyBytesFromHex(strings.Repeat("00", 64)); err == nil {
		t.Error("Expected error for off-curve point")
	}
}
