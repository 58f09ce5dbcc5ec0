// Package sealedbox wraps NaCl anonymous sealed boxes for the one place the
// relay itself encrypts: contact requests sealed against a provider device's
// identity public key. The relay holds no private keys and can never open
// what it seals.
package sealedbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const KeySize = 32

var ErrInvalidPublicKey = errors.New("sealedbox: invalid public key")

// Seal encrypts plaintext against a base64-encoded X25519 public key using an
// ephemeral sender key. Every call produces a distinct ciphertext.
func Seal(plaintext []byte, publicKeyB64 string) ([]byte, error) {
	pub, err := decodeKey(publicKeyB64)
	if err != nil {
		return nil, err
	}
	out, err := box.SealAnonymous(nil, plaintext, pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sealedbox: seal: %w", err)
	}
	return out, nil
}

// Open decrypts a sealed box with the matching key pair. The server never
// calls this; it exists for clients and tests.
func Open(ciphertext []byte, publicKeyB64 string, privateKey *[KeySize]byte) ([]byte, error) {
	pub, err := decodeKey(publicKeyB64)
	if err != nil {
		return nil, err
	}
	plain, ok := box.OpenAnonymous(nil, ciphertext, pub, privateKey)
	if !ok {
		return nil, errors.New("sealedbox: open failed")
	}
	return plain, nil
}

// GenerateKey returns a fresh key pair with the public half base64-encoded the
// way the registry stores it.
func GenerateKey() (publicKeyB64 string, privateKey *[KeySize]byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, err
	}
	return base64.StdEncoding.EncodeToString(pub[:]), priv, nil
}

// ValidKey reports whether the string decodes to a key Seal would accept.
func ValidKey(publicKeyB64 string) bool {
	_, err := decodeKey(publicKeyB64)
	return err == nil
}

func decodeKey(publicKeyB64 string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(raw) != KeySize {
		return nil, ErrInvalidPublicKey
	}
	var pub [KeySize]byte
	copy(pub[:], raw)
	return &pub, nil
}
