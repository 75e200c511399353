package common

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the dispatch boundary matches
// exactly one of these through errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrKeyNotFound          = errors.New("key not found")
	ErrInvalidKeyLength     = errors.New("invalid key length")
	ErrEncryptionFailure    = errors.New("encryption failure")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTransport            = errors.New("transport error")
)

// Kind labels, stable for logs and metrics.
const (
	KindValidation           = "validation"
	KindKeyNotFound          = "key_not_found"
	KindInvalidKeyLength     = "invalid_key_length"
	KindEncryptionFailure    = "encryption_failure"
	KindAuthenticationFailed = "authentication_failed"
	KindTransport            = "transport"
	KindInternal             = "internal"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func ErrInvalid(field, format string, args ...interface{}) error {
	return ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransportError reports a failed delivery: connection refused, broker
// unreachable, D-Bus call failure or a non-2xx REST status.
type TransportError struct {
	Transport string
	Op        string
	Err       error
}

func (e TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Transport, e.Op)
	}
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

func (e TransportError) Is(target error) bool {
	return target == ErrTransport
}

func ErrTransportFailed(transport, op string, err error) error {
	return TransportError{Transport: transport, Op: op, Err: err}
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf maps err onto its kind label. Returns "" for nil.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrKeyNotFound):
		return KindKeyNotFound
	case errors.Is(err, ErrInvalidKeyLength):
		return KindInvalidKeyLength
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrEncryptionFailure):
		return KindEncryptionFailure
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}
