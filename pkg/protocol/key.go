package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/theparadox00-ai/satlink/internal/identity"
)

// Expose the identity interfaces from the otherwise internal package.

// Identity is the device's long-term signing key. Implementations backed by
// a secure element never expose the private half.
type Identity = identity.Store

// GenerateIdentity creates a fresh software-backed P-256 identity key. The
// reference device regenerates its identity on every boot.
func GenerateIdentity() (Identity, error) {
	return identity.Generate(rand.Reader)
}

// LoadIdentity loads a PEM-encoded P-256 private key from a file.
func LoadIdentity(filename string) (Identity, error) {
	return identity.LoadKeyFile(filename)
}

// SaveIdentity writes a software-backed identity key to a PEM file.
// Hardware-backed keys are not exportable.
func SaveIdentity(key Identity, filename string) error {
	native, ok := key.(*identity.NativeKey)
	if !ok {
		return fmt.Errorf("key is not exportable")
	}
	return native.SaveKeyFile(filename)
}

// PublicKeyBytesFromHex decodes a hex-encoded raw X||Y public key and
// verifies it is a valid curve point.
func PublicKeyBytesFromHex(h string) ([]byte, error) {
	raw, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	if err := identity.CheckPublicKey(raw); err != nil {
		return nil, ErrInvalidPublicKey
	}
	return raw, nil
}
