package sealedbox_test

import (
	"bytes"
	"testing"

	"relay/internal/sealedbox"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pub, priv, err := sealedbox.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	plaintext := []byte("first contact")
	ct, err := sealedbox.Seal(plaintext, pub)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Fatalf("ciphertext contains plaintext")
	}

	got, err := sealedbox.Open(ct, pub, priv)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestSealIsRandomized(t *testing.T) {
	pub, _, err := sealedbox.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	a, err := sealedbox.Seal([]byte("same"), pub)
	if err != nil {
		t.Fatalf("seal a: %v", err)
	}
	b, err := sealedbox.Seal([]byte("same"), pub)
	if err != nil {
		t.Fatalf("seal b: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two seals of the same plaintext must differ")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	pub, _, err := sealedbox.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	otherPub, otherPriv, err := sealedbox.GenerateKey()
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}

	ct, err := sealedbox.Seal([]byte("secret"), pub)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := sealedbox.Open(ct, otherPub, otherPriv); err == nil {
		t.Fatalf("open with wrong key must fail")
	}
}

func TestInvalidPublicKey(t *testing.T) {
	if _, err := sealedbox.Seal([]byte("x"), "not base64!"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
	if sealedbox.ValidKey("c2hvcnQ=") {
		t.Fatalf("short key must be invalid")
	}
}
