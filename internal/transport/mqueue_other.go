//go:build !linux

package transport

import (
	"context"
	"errors"

	"github.com/FairForge/containerdispatch/internal/common"
)

func (c *QueueClient) Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error) {
	return Ack{}, common.ErrTransportFailed(string(KindQueue), "open",
		errors.New("posix message queues are only supported on linux"))
}
