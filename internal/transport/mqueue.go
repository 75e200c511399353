package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultQueueName        = "/container_queue"
	DefaultQueueMaxMessages = 10
	DefaultQueueMessageSize = 8192

	queueSendTimeout = 5 * time.Second
	queueMode        = 0o644
)

// QueueClient sends each payload as one message on a POSIX queue. The
// queue is created when it does not exist yet.
type QueueClient struct {
	target QueueTarget
	logger *zap.Logger
}

func NewQueueClient(target QueueTarget, logger *zap.Logger) *QueueClient {
	return &QueueClient{target: target, logger: logger}
}

func (c *QueueClient) Kind() Kind { return KindQueue }
