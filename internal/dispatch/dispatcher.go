// Package dispatch routes encoded payloads to a transport and tracks the
// outcome of every send. A Dispatcher allows one delivery in flight at a
// time; callers queue on the slot until their context expires.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/logging"
	"github.com/FairForge/containerdispatch/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 10 * time.Second

// ErrRateLimited is returned when the configured send rate is exceeded
var ErrRateLimited = common.ValidationError{Field: "rate", Reason: "send rate limit exceeded"}

// ClientFactory builds the transport adapter for a target
type ClientFactory func(transport.Target, *zap.Logger) (transport.Client, error)

type Options struct {
	// Timeout bounds one delivery, including the wait for the in-flight slot
	Timeout time.Duration
	// RateLimit is sends per second; zero disables limiting
	RateLimit float64
	Burst     int
	Metrics   *Metrics
	NewClient ClientFactory
}

type Dispatcher struct {
	timeout   time.Duration
	slot      chan struct{}
	limiter   *rate.Limiter
	metrics   *Metrics
	newClient ClientFactory
	logger    *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		timeout:   opts.Timeout,
		slot:      make(chan struct{}, 1),
		metrics:   opts.Metrics,
		newClient: opts.NewClient,
		logger:    logger,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.newClient == nil {
		d.newClient = transport.NewClient
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return d
}

// Dispatch delivers payload to target. It never retries and never falls
// back to another transport; every failure is reported in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, binary bool, target transport.Target) Result {
	ctx, res := d.begin(ctx, target)
	start := time.Now()

	if err := checkPayload(payload, binary); err != nil {
		return d.finish(res, start, len(payload), binary, transport.Ack{}, err)
	}
	client, err := d.newClient(target, d.logger)
	if err != nil {
		return d.finish(res, start, len(payload), binary, transport.Ack{}, err)
	}
	if d.limiter != nil && !d.limiter.Allow() {
		return d.finish(res, start, len(payload), binary, transport.Ack{}, ErrRateLimited)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		err := common.ErrTransportFailed(string(res.Transport), "wait", ctx.Err())
		return d.finish(res, start, len(payload), binary, transport.Ack{}, err)
	}
	defer func() { <-d.slot }()

	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer d.metrics.InFlight.Dec()
	}

	logging.WithContext(ctx, d.logger).Debug("dispatching request",
		zap.String("transport", string(res.Transport)),
		zap.String("target", target.String()),
		zap.Int("bytes", len(payload)),
		zap.Bool("binary", binary))

	ack, err := client.Deliver(ctx, payload, binary)
	return d.finish(res, start, len(payload), binary, ack, err)
}

// Reject records a send that failed before reaching the transport
func (d *Dispatcher) Reject(ctx context.Context, target transport.Target, err error) Result {
	_, res := d.begin(ctx, target)
	return d.finish(res, time.Now(), 0, false, transport.Ack{}, err)
}

func (d *Dispatcher) begin(ctx context.Context, target transport.Target) (context.Context, Result) {
	id := common.RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = common.WithRequestID(ctx, id)
	}
	res := Result{RequestID: id, State: StatePending}
	if target != nil {
		res.Transport = target.Kind()
	}
	return ctx, res
}

func (d *Dispatcher) finish(res Result, start time.Time, size int, binary bool, ack transport.Ack, err error) Result {
	res.Duration = time.Since(start)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		d.logger.Warn("dispatch failed",
			zap.String("request_id", res.RequestID),
			zap.String("transport", string(res.Transport)),
			zap.String("kind", res.Kind()),
			zap.Duration("duration", res.Duration),
			zap.Error(err))
	} else {
		res.State = StateDelivered
		res.Ack = ack
		d.logger.Info("request delivered",
			zap.String("request_id", res.RequestID),
			zap.String("transport", string(res.Transport)),
			zap.Int("bytes", size),
			zap.Duration("duration", res.Duration))
	}
	if d.metrics != nil {
		d.metrics.observe(res, size, binary)
	}
	return res
}

func checkPayload(payload []byte, binary bool) error {
	if len(payload) == 0 {
		return common.ErrInvalid("payload", "empty")
	}
	if !binary && !json.Valid(payload) {
		return common.ErrInvalid("payload", "text framing requires a JSON document")
	}
	return nil
}
