package account

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errUnseal = errors.New("unseal: token corrupted or wrong secret")

// Sealer encrypts bearer tokens before they are persisted.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("seal secret is empty")
	}
	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("teachmate bearer token"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}
	return s, nil
}

// Seal encrypts token. The nonce is prepended to the box.
func (s *Sealer) Seal(token string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(box []byte) (string, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return "", errUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	out, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errUnseal
	}
	return string(out), nil
}
