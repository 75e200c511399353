package transport

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const DefaultDBusMethod = "Execute"

// busConn is the slice of *dbus.Conn the client uses
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// DBusClient calls Execute(string) on the manager's session-bus object
type DBusClient struct {
	target DBusTarget
	logger *zap.Logger
	dial   func(ctx context.Context) (busConn, error)
}

func NewDBusClient(target DBusTarget, logger *zap.Logger) *DBusClient {
	return &DBusClient{
		target: target,
		logger: logger,
		dial:   dialSessionBus,
	}
}

func dialSessionBus(ctx context.Context) (busConn, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *DBusClient) Kind() Kind { return KindDBus }

// EncodeDBusArgument renders payload as the string argument of the call.
// D-Bus strings must be valid UTF-8, so binary payloads are always base64.
func EncodeDBusArgument(payload []byte, binary bool, encoding DBusEncoding) string {
	if encoding == DBusBase64Binary && !binary {
		return string(payload)
	}
	return base64.StdEncoding.EncodeToString(payload)
}

func (c *DBusClient) Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error) {
	arg := EncodeDBusArgument(payload, binary, c.target.Encoding)

	conn, err := c.dial(ctx)
	if err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindDBus), "connect", err)
	}
	defer func() { _ = conn.Close() }()

	obj := conn.Object(c.target.BusName, dbus.ObjectPath(c.target.ObjectPath))
	call := obj.CallWithContext(ctx, c.target.Member(), 0, arg)
	if call.Err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindDBus), "call", call.Err)
	}

	c.logger.Debug("dbus call returned",
		zap.String("bus_name", c.target.BusName),
		zap.String("member", c.target.Member()),
		zap.Int("arg_len", len(arg)))

	ack := Ack{Transport: KindDBus}
	if len(call.Body) > 0 {
		ack.Detail = fmt.Sprint(call.Body[0])
	}
	return ack, nil
}
