package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/FairForge/containerdispatch/internal/common"
)

// Box seals and opens envelopes with keys from a KeyStore
type Box struct {
	keys *KeyStore
	rand io.Reader
}

type BoxOption func(*Box)

// WithRandom replaces the nonce source. It must be a CSPRNG outside tests.
func WithRandom(r io.Reader) BoxOption {
	return func(b *Box) {
		b.rand = r
	}
}

func NewBox(keys *KeyStore, opts ...BoxOption) *Box {
	b := &Box{keys: keys, rand: rand.Reader}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Seal encrypts plaintext under alg and returns the framed envelope. With
// AlgorithmNone the plaintext is returned unchanged. Every call draws a
// fresh nonce.
func (b *Box) Seal(plaintext []byte, alg Algorithm) ([]byte, error) {
	enc, err := EncryptorFor(alg)
	if err != nil {
		return nil, err
	}
	if !alg.Enabled() {
		return enc.Encrypt(nil, nil, plaintext)
	}

	key, err := b.keys.Key(alg)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, enc.NonceSize())
	if _, err := io.ReadFull(b.rand, nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", common.ErrEncryptionFailure, err)
	}

	sealed, err := enc.Encrypt(key, nonce, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrEncryptionFailure, alg, err)
	}
	return envelopeFromSealed(nonce, sealed).Bytes(), nil
}

// Open verifies and decrypts an envelope produced by Seal. Any tampering
// yields common.ErrAuthenticationFailed and no plaintext.
func (b *Box) Open(envelope []byte, alg Algorithm) ([]byte, error) {
	enc, err := EncryptorFor(alg)
	if err != nil {
		return nil, err
	}
	if !alg.Enabled() {
		return enc.Decrypt(nil, nil, envelope)
	}

	env, err := ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	key, err := b.keys.Key(alg)
	if err != nil {
		return nil, err
	}

	plaintext, err := enc.Decrypt(key, env.Nonce, env.sealed())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrAuthenticationFailed, alg)
	}
	return plaintext, nil
}
