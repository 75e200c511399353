package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"go.uber.org/zap"
)

const (
	DefaultRESTPath = "/execute"
	DefaultRESTPort = 5000

	RequestIDHeader = "X-Request-ID"

	maxAckBody = 64 << 10
)

// RESTClient posts each payload to the manager's execute endpoint
type RESTClient struct {
	target RESTTarget
	client *http.Client
	logger *zap.Logger
}

func NewRESTClient(target RESTTarget, logger *zap.Logger) *RESTClient {
	return &RESTClient{
		target: target,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// WithHTTPClient replaces the underlying client (tests, custom TLS dialers)
func (c *RESTClient) WithHTTPClient(client *http.Client) *RESTClient {
	c.client = client
	return c
}

func (c *RESTClient) Kind() Kind { return KindREST }

func (c *RESTClient) Deliver(ctx context.Context, payload []byte, binary bool) (Ack, error) {
	url := c.target.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindREST), "request", err)
	}

	contentType := "application/json"
	if binary {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if id := common.RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindREST), "post", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBody))
	if err != nil {
		return Ack{}, common.ErrTransportFailed(string(KindREST), "read response", err)
	}
	text := strings.TrimSpace(string(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ack{}, common.ErrTransportFailed(string(KindREST), "post",
			fmt.Errorf("status %d: %s", resp.StatusCode, text))
	}

	c.logger.Debug("rest delivery acknowledged",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", contentType))

	return Ack{
		Transport:  KindREST,
		StatusCode: resp.StatusCode,
		Detail:     ackMessage(body, text),
	}, nil
}

// ackMessage reads the manager's {"status","message"} reply, falling back
// to the raw body.
func ackMessage(body []byte, fallback string) string {
	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Message != "" {
		return reply.Message
	}
	return fallback
}
