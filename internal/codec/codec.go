// Package codec serializes container requests into the two wire encodings
// the manager accepts: a JSON document and a Protobuf message carrying the
// same fields.
package codec

import (
	"fmt"
	"strings"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/request"
)

// Format tags which encoder produced a payload
type Format string

const (
	FormatJSON  Format = "json"
	FormatProto Format = "proto"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "proto", "protobuf":
		return FormatProto, nil
	default:
		return "", common.ErrInvalid("format", "unsupported format %q", s)
	}
}

// Binary reports whether payloads of this format are not printable text
func (f Format) Binary() bool {
	return f == FormatProto
}

// Payload is an encoded request. It is immutable once created.
type Payload struct {
	data   []byte
	format Format
}

// NewPayload wraps already-encoded bytes, e.g. a body read by a receiver
func NewPayload(data []byte, format Format) Payload {
	return Payload{data: append([]byte(nil), data...), format: format}
}

// Bytes returns a copy of the encoded bytes
func (p Payload) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

func (p Payload) Format() Format { return p.format }
func (p Payload) Len() int       { return len(p.data) }

// Encode serializes req in the given format
func Encode(req request.ContainerRequest, format Format) (Payload, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = encodeJSON(req)
	case FormatProto:
		data = encodeProto(req)
	default:
		return Payload{}, common.ErrInvalid("format", "unsupported format %q", format)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s: %w", format, err)
	}
	return Payload{data: data, format: format}, nil
}

// Decode is the inverse of Encode
func Decode(p Payload) (request.ContainerRequest, error) {
	switch p.format {
	case FormatJSON:
		return DecodeJSON(p.data)
	case FormatProto:
		return DecodeProto(p.data)
	default:
		return request.ContainerRequest{}, common.ErrInvalid("format", "unsupported format %q", p.format)
	}
}
