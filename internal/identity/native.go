package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/theparadox00-ai/satlink/internal/memzero"
)

// NativeKey implements Store in software using native Go. It stands in for
// the secure element on hosts without one; production satellite terminals
// supply a driver-backed Store instead.
type NativeKey struct {
	private *ecdsa.PrivateKey
}

// Generate creates a fresh P-256 identity key. The caller supplies the random
// source, crypto/rand.Reader in production.
func Generate(rng io.Reader) (*NativeKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, err
	}
	return &NativeKey{private: key}, nil
}

func (n *NativeKey) PublicBytes() []byte {
	raw := make([]byte, PublicKeySize)
	n.private.PublicKey.X.FillBytes(raw[:32])
	n.private.PublicKey.Y.FillBytes(raw[32:])
	return raw
}

func (n *NativeKey) Sign(digest [DigestSize]byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, n.private, digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, SignatureSize)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

func (n *NativeKey) Exchange(peerPublic []byte) ([]byte, error) {
	x, y, err := decodePoint(peerPublic)
	if err != nil {
		return nil, err
	}
	sharedX, sharedY := elliptic.P256().ScalarMult(x, y, n.private.D.Bytes())
	if sharedX.Sign() == 0 && sharedY.Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}
	secret := make([]byte, SharedSecretSize)
	sharedX.FillBytes(secret)
	sharedY.SetInt64(0)
	return secret, nil
}

// decodePoint parses a raw X||Y encoded P-256 point and checks it lies on the
// curve. The point at infinity is rejected.
func decodePoint(raw []byte) (*big.Int, *big.Int, error) {
	if len(raw) != PublicKeySize {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(raw))
	}
	x := new(big.Int).SetBytes(raw[:32])
	y := new(big.Int).SetBytes(raw[32:])
	if x.Sign() == 0 && y.Sign() == 0 {
		return nil, nil, ErrInvalidPublicKey
	}
	if !elliptic.P256().IsOnCurve(x, y) {
		return nil, nil, ErrInvalidPublicKey
	}
	return x, y, nil
}

// CheckPublicKey validates that raw encodes a point on P-256.
func CheckPublicKey(raw []byte) error {
	_, _, err := decodePoint(raw)
	return err
}

// Verify checks a raw r||s signature over digest against peerPublic. It
// returns ErrInvalidPublicKey if the key cannot be imported and
// ErrInvalidSignature if verification fails.
func Verify(peerPublic []byte, digest [DigestSize]byte, signature []byte) error {
	if len(signature) != SignatureSize {
		return ErrInvalidSignature
	}
	x, y, err := decodePoint(peerPublic)
	if err != nil {
		return err
	}
	pub := ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(&pub, digest[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}

// LoadKeyFile loads a PEM-encoded P-256 private key from a file.
func LoadKeyFile(filename string) (*NativeKey, error) {
	pemBlock, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBlock)
	if block == nil {
		return nil, fmt.Errorf("%w: expected PEM encoding", ErrInvalidPrivateKey)
	}

	var key *ecdsa.PrivateKey
	if block.Type == "EC PRIVATE KEY" {
		key, err = x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
	} else {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		var ok bool
		if key, ok = parsed.(*ecdsa.PrivateKey); !ok {
			return nil, fmt.Errorf("%w: only elliptic curve keys supported", ErrInvalidPrivateKey)
		}
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: only NIST-P256 keys supported", ErrInvalidPrivateKey)
	}
	return &NativeKey{private: key}, nil
}

// SaveKeyFile writes the key to filename as SEC1 PEM, readable only by the
// owner.
func (n *NativeKey) SaveKeyFile(filename string) error {
	der, err := x509.MarshalECPrivateKey(n.private)
	if err != nil {
		return err
	}
	block := pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return os.WriteFile(filename, pem.EncodeToMemory(&block), 0600)
}

// MarshalPEM returns the SEC1 PEM encoding of the private key for storage in
// a credential store.
func (n *NativeKey) MarshalPEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(n.private)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// UnmarshalPEM parses a SEC1 or PKCS8 PEM private key previously produced by
// MarshalPEM or an external tool.
func UnmarshalPEM(data []byte) (*NativeKey, error) {
	defer memzero.Zero(data)
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: expected PEM encoding", ErrInvalidPrivateKey)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		if parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes); pkcs8Err == nil {
			if ecKey, ok := parsed.(*ecdsa.PrivateKey); ok {
				key = ecKey
			} else {
				return nil, fmt.Errorf("%w: only elliptic curve keys supported", ErrInvalidPrivateKey)
			}
		} else {
			return nil, err
		}
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: only NIST-P256 keys supported", ErrInvalidPrivateKey)
	}
	return &NativeKey{private: key}, nil
}
