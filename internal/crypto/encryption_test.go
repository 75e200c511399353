package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func newNonce(t *testing.T) []byte {
	t.Helper()
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("nonce: %v", err)
	}
	return nonce
}

func newKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return key
}

func encryptors() []Encryptor {
	return []Encryptor{NewAESGCMEncryptor(), NewChaCha20Poly1305Encryptor()}
}

func TestEncryptor_Sizes(t *testing.T) {
	for _, e := range encryptors() {
		if e.KeySize() != 32 {
			t.Errorf("%s KeySize() = %d, want 32", e.Algorithm(), e.KeySize())
		}
		if e.NonceSize() != 12 {
			t.Errorf("%s NonceSize() = %d, want 12", e.Algorithm(), e.NonceSize())
		}
	}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	plaintext := []byte(`{"runtime":"docker","operation":"create"}`)

	for _, e := range encryptors() {
		t.Run(string(e.Algorithm()), func(t *testing.T) {
			key := newKey(t)
			nonce := newNonce(t)

			ciphertext, err := e.Encrypt(key, nonce, plaintext)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if len(ciphertext) != len(plaintext)+TagSize {
				t.Errorf("ciphertext size = %d, want %d", len(ciphertext), len(plaintext)+TagSize)
			}
			if bytes.Contains(ciphertext, plaintext) {
				t.Error("ciphertext should not contain plaintext")
			}

			decrypted, err := e.Decrypt(key, nonce, ciphertext)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(plaintext, decrypted) {
				t.Error("decrypted data doesn't match original")
			}
		})
	}
}

func TestEncryptor_EmptyData(t *testing.T) {
	for _, e := range encryptors() {
		key := newKey(t)
		nonce := newNonce(t)

		ciphertext, err := e.Encrypt(key, nonce, []byte{})
		if err != nil {
			t.Fatalf("%s: Encrypt empty failed: %v", e.Algorithm(), err)
		}
		decrypted, err := e.Decrypt(key, nonce, ciphertext)
		if err != nil {
			t.Fatalf("%s: Decrypt empty failed: %v", e.Algorithm(), err)
		}
		if len(decrypted) != 0 {
			t.Errorf("%s: expected empty result, got %d bytes", e.Algorithm(), len(decrypted))
		}
	}
}

func TestEncryptor_InvalidInputs(t *testing.T) {
	for _, e := range encryptors() {
		if _, err := e.Encrypt(make([]byte, 16), newNonce(t), []byte("test")); err == nil {
			t.Errorf("%s: expected error for short key", e.Algorithm())
		}
		if _, err := e.Encrypt(newKey(t), make([]byte, 24), []byte("test")); err == nil {
			t.Errorf("%s: expected error for 24-byte nonce", e.Algorithm())
		}
	}
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	for _, e := range encryptors() {
		key := newKey(t)
		nonce := newNonce(t)

		ciphertext, _ := e.Encrypt(key, nonce, []byte("Secret message"))
		ciphertext[0] ^= 0xFF

		if _, err := e.Decrypt(key, nonce, ciphertext); err == nil {
			t.Errorf("%s: expected error for tampered ciphertext", e.Algorithm())
		}
	}
}

func TestEncryptor_WrongKey(t *testing.T) {
	for _, e := range encryptors() {
		nonce := newNonce(t)
		ciphertext, _ := e.Encrypt(newKey(t), nonce, []byte("Secret message"))

		if _, err := e.Decrypt(newKey(t), nonce, ciphertext); err == nil {
			t.Errorf("%s: expected error for wrong key", e.Algorithm())
		}
	}
}

func TestNoopEncryptor(t *testing.T) {
	e := NewNoopEncryptor()

	if e.Algorithm() != AlgorithmNone {
		t.Errorf("Algorithm() = %v, want %v", e.Algorithm(), AlgorithmNone)
	}

	plaintext := []byte("Test data")
	ciphertext, err := e.Encrypt(nil, nil, plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !bytes.Equal(plaintext, ciphertext) {
		t.Error("NoopEncryptor should return unchanged data")
	}
}

func TestEncryptorFor(t *testing.T) {
	tests := []struct {
		alg     Algorithm
		want    Algorithm
		wantErr bool
	}{
		{AlgorithmAES256GCM, AlgorithmAES256GCM, false},
		{AlgorithmChaCha20Poly1305, AlgorithmChaCha20Poly1305, false},
		{AlgorithmNone, AlgorithmNone, false},
		{Algorithm("xchacha20"), "", true},
	}

	for _, tt := range tests {
		e, err := EncryptorFor(tt.alg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("EncryptorFor(%q) expected error", tt.alg)
			}
			continue
		}
		if err != nil {
			t.Fatalf("EncryptorFor(%q) failed: %v", tt.alg, err)
		}
		if e.Algorithm() != tt.want {
			t.Errorf("EncryptorFor(%q).Algorithm() = %v, want %v", tt.alg, e.Algorithm(), tt.want)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"":                  AlgorithmNone,
		"none":              AlgorithmNone,
		"AES-256-GCM":       AlgorithmAES256GCM,
		"aes":               AlgorithmAES256GCM,
		"chacha20":          AlgorithmChaCha20Poly1305,
		"ChaCha20-Poly1305": AlgorithmChaCha20Poly1305,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		if err != nil {
			t.Errorf("ParseAlgorithm(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseAlgorithm("rot13"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
