package dispatch

import (
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/transport"
)

// State is the lifecycle of one dispatch
type State string

const (
	StatePending   State = "pending"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

// Result reports the outcome of one send. Err is set exactly when State is
// StateFailed.
type Result struct {
	RequestID string
	Transport transport.Kind
	State     State
	Ack       transport.Ack
	Err       error
	Duration  time.Duration
}

func (r Result) Delivered() bool {
	return r.State == StateDelivered
}

// Reason is the failure description, empty unless failed
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Kind is the error kind label, "none" when delivered
func (r Result) Kind() string {
	if r.Err == nil {
		return "none"
	}
	return common.KindOf(r.Err)
}
