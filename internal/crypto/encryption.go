package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/FairForge/containerdispatch/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor provides encryption and decryption under a caller-supplied nonce.
// Ciphertexts carry the authentication tag appended, as cipher.AEAD does.
type Encryptor interface {
	// Encrypt seals plaintext with the given key and nonce
	Encrypt(key, nonce, plaintext []byte) ([]byte, error)

	// Decrypt opens ciphertext, failing if the tag does not verify
	Decrypt(key, nonce, ciphertext []byte) ([]byte, error)

	Algorithm() Algorithm
	KeySize() int
	NonceSize() int
}

// AESGCMEncryptor implements Encryptor using AES-256-GCM
type AESGCMEncryptor struct{}

func NewAESGCMEncryptor() *AESGCMEncryptor {
	return &AESGCMEncryptor{}
}

func (e *AESGCMEncryptor) Algorithm() Algorithm { return AlgorithmAES256GCM }
func (e *AESGCMEncryptor) KeySize() int         { return KeySize }
func (e *AESGCMEncryptor) NonceSize() int       { return NonceSize }

func (e *AESGCMEncryptor) Encrypt(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	return seal(aead, nonce, plaintext)
}

func (e *AESGCMEncryptor) Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	return open(aead, nonce, ciphertext)
}

func (e *AESGCMEncryptor) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != e.KeySize() {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), e.KeySize())
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ChaCha20Poly1305Encryptor implements Encryptor using the IETF
// ChaCha20-Poly1305 construction (12-byte nonce)
type ChaCha20Poly1305Encryptor struct{}

func NewChaCha20Poly1305Encryptor() *ChaCha20Poly1305Encryptor {
	return &ChaCha20Poly1305Encryptor{}
}

func (e *ChaCha20Poly1305Encryptor) Algorithm() Algorithm { return AlgorithmChaCha20Poly1305 }
func (e *ChaCha20Poly1305Encryptor) KeySize() int         { return chacha20poly1305.KeySize }
func (e *ChaCha20Poly1305Encryptor) NonceSize() int       { return chacha20poly1305.NonceSize }

func (e *ChaCha20Poly1305Encryptor) Encrypt(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	return seal(aead, nonce, plaintext)
}

func (e *ChaCha20Poly1305Encryptor) Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	return open(aead, nonce, ciphertext)
}

func (e *ChaCha20Poly1305Encryptor) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != e.KeySize() {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), e.KeySize())
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}

func seal(aead cipher.AEAD, nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), aead.NonceSize())
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func open(aead cipher.AEAD, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), aead.NonceSize())
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// NoopEncryptor is a pass-through encryptor (no encryption)
type NoopEncryptor struct{}

func NewNoopEncryptor() *NoopEncryptor        { return &NoopEncryptor{} }
func (e *NoopEncryptor) Algorithm() Algorithm { return AlgorithmNone }
func (e *NoopEncryptor) KeySize() int         { return 0 }
func (e *NoopEncryptor) NonceSize() int       { return 0 }
func (e *NoopEncryptor) Encrypt(_, _, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}
func (e *NoopEncryptor) Decrypt(_, _, ciphertext []byte) ([]byte, error) {
	return append([]byte(nil), ciphertext...), nil
}

// EncryptorFor returns the encryptor implementing alg
func EncryptorFor(alg Algorithm) (Encryptor, error) {
	switch alg {
	case AlgorithmAES256GCM:
		return NewAESGCMEncryptor(), nil
	case AlgorithmChaCha20Poly1305:
		return NewChaCha20Poly1305Encryptor(), nil
	case AlgorithmNone, "":
		return NewNoopEncryptor(), nil
	default:
		return nil, common.ErrInvalid("algorithm", "unsupported encryption algorithm %q", alg)
	}
}
