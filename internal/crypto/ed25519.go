package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrInvalidPublicKey  = errors.New("invalid Ed25519 public key")
	ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// ValidatePublicKey checks if a base64-encoded string is a valid Ed25519 public key.
func ValidatePublicKey(pubkeyB64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}

// ValidatePrivateKey decodes a base64 Ed25519 seed (32 bytes) or full private key (64 bytes).
func ValidatePrivateKey(privkeyB64 string) (ed25519.PrivateKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(privkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPrivateKey)
	}

	switch len(decoded) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	default:
		return nil, fmt.Errorf("%w: must be %d or %d bytes, got %d", ErrInvalidPrivateKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(decoded))
	}
}

// VerifySignature verifies a signed message.
func VerifySignature(pubkey ed25519.PublicKey, signedData []byte, signature []byte) error {
	if len(signature) != ed25519.SignatureSize || !ed25519.Verify(pubkey, signedData, signature) {
		return ErrInvalidSignature
	}
	return nil
}
