// Package receiver is the receiving side of the dispatch protocol: it opens
// envelopes, decodes payloads and serves the manager's POST /execute
// endpoint. It is used by `containerctl receive` and by end-to-end tests.
package receiver

import (
	"encoding/base64"
	"strings"

	"github.com/FairForge/containerdispatch/internal/codec"
	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/crypto"
	"github.com/FairForge/containerdispatch/internal/request"
	"github.com/FairForge/containerdispatch/internal/transport"
)

// Decoder reverses the sender's framing. Both ends agree on Format and
// Algorithm out of band.
type Decoder struct {
	Box       *crypto.Box
	Format    codec.Format
	Algorithm crypto.Algorithm
}

func (d Decoder) Decode(body []byte) (request.ContainerRequest, error) {
	plaintext := body
	if d.Algorithm.Enabled() {
		if d.Box == nil {
			return request.ContainerRequest{}, common.ErrInvalid("encryption", "no key store configured for %s", d.Algorithm)
		}
		var err error
		plaintext, err = d.Box.Open(body, d.Algorithm)
		if err != nil {
			return request.ContainerRequest{}, err
		}
	}

	if d.Format == codec.FormatProto {
		return codec.DecodeProto(plaintext)
	}
	if err := codec.ValidateJSON(plaintext); err != nil {
		return request.ContainerRequest{}, err
	}
	return codec.DecodeJSON(plaintext)
}

// DecodeDBus recovers the payload bytes from the Execute string argument.
// Under base64-binary, JSON text arrives unencoded; '{' is outside the
// base64 alphabet so the two cases cannot be confused.
func DecodeDBus(arg string, encoding transport.DBusEncoding) ([]byte, error) {
	if encoding == transport.DBusBase64Binary && strings.HasPrefix(strings.TrimSpace(arg), "{") {
		return []byte(arg), nil
	}
	b, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, common.ErrInvalid("payload", "d-bus argument is not base64: %v", err)
	}
	return b, nil
}
