// Package crypto seals serialized requests in an authenticated-encryption
// envelope before they leave the process. Two AEAD constructions are
// supported, AES-256-GCM and ChaCha20-Poly1305, both with a 256-bit key,
// a 96-bit nonce and a 128-bit tag. The wire layout is
//
//	nonce (12) || tag (16) || ciphertext (len(plaintext))
//
// with no length prefixes. The algorithm is agreed out of band.
package crypto

import (
	"strings"

	"github.com/FairForge/containerdispatch/internal/common"
)

// Algorithm selects the envelope construction
type Algorithm string

const (
	AlgorithmNone             Algorithm = "none"
	AlgorithmAES256GCM        Algorithm = "aes256gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20poly1305"
)

// Algorithms lists the algorithms that need a key
var Algorithms = []Algorithm{AlgorithmAES256GCM, AlgorithmChaCha20Poly1305}

const (
	KeySize   = 32 // 256 bits
	NonceSize = 12 // 96 bits
	TagSize   = 16 // 128 bits
	Overhead  = NonceSize + TagSize
)

// Enabled reports whether payloads under this algorithm are encrypted
func (a Algorithm) Enabled() bool {
	return a != AlgorithmNone && a != ""
}

// ParseAlgorithm accepts the canonical names plus the spellings operators use
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return AlgorithmNone, nil
	case "aes", "aes256gcm", "aes-256-gcm", "aes-gcm":
		return AlgorithmAES256GCM, nil
	case "chacha20", "chacha20poly1305", "chacha20-poly1305", "chacha":
		return AlgorithmChaCha20Poly1305, nil
	default:
		return "", common.ErrInvalid("algorithm", "unsupported encryption algorithm %q", s)
	}
}
