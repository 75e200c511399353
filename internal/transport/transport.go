// Package transport delivers encoded requests to the container manager.
// Each supported transport has one adapter implementing Client; callers
// select the adapter through a Target.
package transport

import (
	"context"
	"strings"

	"github.com/FairForge/containerdispatch/internal/common"
	"go.uber.org/zap"
)

// Kind identifies a transport
type Kind string

const (
	KindREST  Kind = "rest"
	KindMQTT  Kind = "mqtt"
	KindQueue Kind = "mqueue"
	KindDBus  Kind = "dbus"
)

// Kinds lists every transport
var Kinds = []Kind{KindREST, KindMQTT, KindQueue, KindDBus}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rest", "http":
		return KindREST, nil
	case "mqtt":
		return KindMQTT, nil
	case "mqueue", "mq", "queue", "posix-mq", "messagequeue":
		return KindQueue, nil
	case "dbus", "d-bus":
		return KindDBus, nil
	default:
		return "", common.ErrInvalid("transport", "unsupported transport %q", s)
	}
}

// Ack describes a successful delivery
type Ack struct {
	Transport  Kind   `json:"transport"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Client delivers one payload per call. binary is true when the payload is
// not clean text (Protobuf or an encrypted envelope).
type Client interface {
	Kind() Kind
	Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error)
}

// NewClient validates target and returns the adapter for it
func NewClient(target Target, logger *zap.Logger) (Client, error) {
	if target == nil {
		return nil, common.ErrInvalid("transport", "no target")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch t := target.(type) {
	case RESTTarget:
		return NewRESTClient(t, logger), nil
	case MQTTTarget:
		return NewMQTTClient(t, logger), nil
	case QueueTarget:
		return NewQueueClient(t, logger), nil
	case DBusTarget:
		return NewDBusClient(t, logger), nil
	default:
		return nil, common.ErrInvalid("transport", "unsupported target %T", target)
	}
}
