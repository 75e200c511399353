//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/FairForge/containerdispatch/internal/common"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// mqAttr mirrors struct mq_attr
type mqAttr struct {
	Flags   int
	MaxMsg  int
	MsgSize int
	CurMsgs int
	_       [4]int
}

func (c *QueueClient) Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error) {
	if len(payload) == 0 {
		return Ack{}, common.ErrInvalid("payload", "empty message")
	}

	maxMsg, msgSize := c.target.attrs()
	attr := &mqAttr{MaxMsg: maxMsg, MsgSize: msgSize}

	fd, err := mqOpen(c.target.Name, unix.O_WRONLY|unix.O_CREAT|unix.O_CLOEXEC, queueMode, attr)
	if err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindQueue), "open", fmt.Errorf("%s: %w", c.target.Name, err))
	}
	defer func() { _ = unix.Close(fd) }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(queueSendTimeout)
	}
	if err := mqTimedSend(fd, payload, 0, deadline); err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindQueue), "send", err)
	}

	c.logger.Debug("queue message sent",
		zap.String("queue", c.target.Name),
		zap.Int("bytes", len(payload)),
		zap.Bool("binary", binary))

	return Ack{
		Transport: KindQueue,
		Detail:    fmt.Sprintf("queued %d bytes on %s", len(payload), c.target.Name),
	}, nil
}

// mqOpen wraps mq_open(3). The kernel call takes the name without its
// leading slash.
func mqOpen(name string, flags int, mode uint32, attr *mqAttr) (int, error) {
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return -1, err
	}
	for {
		fd, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
			uintptr(unsafe.Pointer(p)), uintptr(flags), uintptr(mode),
			uintptr(unsafe.Pointer(attr)), 0, 0)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return -1, errno
		}
		return int(fd), nil
	}
}

func mqTimedSend(fd int, msg []byte, prio uint, deadline time.Time) error {
	ts, err := unix.TimeToTimespec(deadline)
	if err != nil {
		return err
	}
	for {
		_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
			uintptr(fd), uintptr(unsafe.Pointer(&msg[0])), uintptr(len(msg)),
			uintptr(prio), uintptr(unsafe.Pointer(&ts)), 0)
		if errno == unix.EINTR {
			continue
		}
		if errno == unix.ETIMEDOUT {
			return errors.New("queue full until deadline")
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}
