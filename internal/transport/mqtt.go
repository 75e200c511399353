package transport

import (
	"context"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMQTTPort  = 1883
	DefaultMQTTTopic = "container/execute"

	mqttConnectTimeout  = 10 * time.Second
	mqttDisconnectQuiet = 250 // milliseconds
)

// MQTTClient publishes each payload on a fresh broker connection
type MQTTClient struct {
	target    MQTTTarget
	logger    *zap.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewMQTTClient(target MQTTTarget, logger *zap.Logger) *MQTTClient {
	return &MQTTClient{
		target:    target,
		logger:    logger,
		newClient: mqtt.NewClient,
	}
}

func (c *MQTTClient) Kind() Kind { return KindMQTT }

func (c *MQTTClient) options(ctx context.Context) *mqtt.ClientOptions {
	clientID := c.target.ClientID
	if clientID == "" {
		clientID = "containerctl-" + uuid.NewString()[:8]
	}

	timeout := mqttConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			timeout = left
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(c.target.BrokerURL()).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(timeout)
	if c.target.Username != "" {
		opts.SetUsername(c.target.Username)
		opts.SetPassword(c.target.Password)
	}
	return opts
}

func (c *MQTTClient) Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error) {
	client := c.newClient(c.options(ctx))

	if err := waitToken(ctx, client.Connect()); err != nil {
		// a connect still pending when ctx expires may complete later
		client.Disconnect(0)
		return Ack{}, common.ErrTransportFailed(string(KindMQTT), "connect", err)
	}
	defer client.Disconnect(mqttDisconnectQuiet)

	var body interface{} = payload
	if !binary {
		body = string(payload)
	}

	token := client.Publish(c.target.Topic, c.target.QoS, false, body)
	if err := waitToken(ctx, token); err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindMQTT), "publish", err)
	}

	c.logger.Debug("mqtt message published",
		zap.String("broker", c.target.BrokerURL()),
		zap.String("topic", c.target.Topic),
		zap.Bool("binary", binary))

	return Ack{Transport: KindMQTT, Detail: "published to " + c.target.Topic}, nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
