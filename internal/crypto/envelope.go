package crypto

import (
	"fmt"

	"github.com/FairForge/containerdispatch/internal/common"
)

// Envelope is a sealed payload split into its fixed-layout parts
type Envelope struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// ParseEnvelope splits b at the fixed offsets. The parts alias b.
func ParseEnvelope(b []byte) (Envelope, error) {
	if len(b) < Overhead {
		return Envelope{}, fmt.Errorf("%w: envelope is %d bytes, need at least %d", common.ErrAuthenticationFailed, len(b), Overhead)
	}
	return Envelope{
		Nonce:      b[:NonceSize],
		Tag:        b[NonceSize:Overhead],
		Ciphertext: b[Overhead:],
	}, nil
}

// Bytes returns nonce || tag || ciphertext
func (e Envelope) Bytes() []byte {
	out := make([]byte, 0, len(e.Nonce)+len(e.Tag)+len(e.Ciphertext))
	out = append(out, e.Nonce...)
	out = append(out, e.Tag...)
	return append(out, e.Ciphertext...)
}

// sealed returns ciphertext || tag, the layout cipher.AEAD opens
func (e Envelope) sealed() []byte {
	out := make([]byte, 0, len(e.Ciphertext)+len(e.Tag))
	out = append(out, e.Ciphertext...)
	return append(out, e.Tag...)
}

func envelopeFromSealed(nonce, sealed []byte) Envelope {
	split := len(sealed) - TagSize
	return Envelope{
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}
}
