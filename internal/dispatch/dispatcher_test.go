package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/transport"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type delivery struct {
	payload   []byte
	binary    bool
	requestID string
}

// fakeClient records deliveries; deliver overrides the default success
type fakeClient struct {
	mu         sync.Mutex
	deliveries []delivery
	deliver    func(ctx context.Context) (transport.Ack, error)
}

func (f *fakeClient) Kind() transport.Kind { return transport.KindREST }

func (f *fakeClient) Deliver(ctx context.Context, payload []byte, binary bool) (transport.Ack, error) {
	f.mu.Lock()
	f.deliveries = append(f.deliveries, delivery{append([]byte(nil), payload...), binary, common.RequestID(ctx)})
	f.mu.Unlock()
	if f.deliver != nil {
		return f.deliver(ctx)
	}
	return transport.Ack{Transport: transport.KindREST, StatusCode: 200, Detail: "ok"}, nil
}

func (f *fakeClient) calls() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

var restTarget = transport.RESTTarget{Host: "localhost", Port: 5000}

func newTestDispatcher(client *fakeClient, opts Options) *Dispatcher {
	opts.NewClient = func(target transport.Target, _ *zap.Logger) (transport.Client, error) {
		if err := target.Validate(); err != nil {
			return nil, err
		}
		return client, nil
	}
	return New(opts, zap.NewNop())
}

func counterValue(t *testing.T, m *Metrics, labels ...string) float64 {
	t.Helper()
	var pb dto.Metric
	c, err := m.Dispatches.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestDispatcher_Delivered(t *testing.T) {
	client := &fakeClient{}
	metrics := NewMetrics()
	d := newTestDispatcher(client, Options{Metrics: metrics})

	res := d.Dispatch(context.Background(), []byte(`{"runtime":"docker"}`), false, restTarget)

	require.NoError(t, res.Err)
	assert.Equal(t, StateDelivered, res.State)
	assert.True(t, res.Delivered())
	assert.Equal(t, transport.KindREST, res.Transport)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "ok", res.Ack.Detail)
	assert.Empty(t, res.Reason())
	assert.Equal(t, "none", res.Kind())

	calls := client.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, res.RequestID, calls[0].requestID)
	assert.False(t, calls[0].binary)

	assert.Equal(t, 1.0, counterValue(t, metrics, "rest", "delivered", "none"))
}

func TestDispatcher_KeepsCallerRequestID(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client, Options{})

	ctx := common.WithRequestID(context.Background(), "from-caller")
	res := d.Dispatch(ctx, []byte{0x01}, true, restTarget)

	assert.Equal(t, "from-caller", res.RequestID)
	assert.Equal(t, "from-caller", client.calls()[0].requestID)
}

func TestDispatcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		binary  bool
		target  transport.Target
		deliver func(context.Context) (transport.Ack, error)
		kind    string
		called  bool
	}{
		{"empty payload", nil, true, restTarget, nil, common.KindValidation, false},
		{"text not json", []byte{0xff, 0x00}, false, restTarget, nil, common.KindValidation, false},
		{"invalid target", []byte(`{}`), false, transport.RESTTarget{Host: "h"}, nil, common.KindValidation, false},
		{"nil target", []byte(`{}`), false, nil, nil, common.KindValidation, false},
		{
			"transport error", []byte(`{}`), false, restTarget,
			func(context.Context) (transport.Ack, error) {
				return transport.Ack{}, common.ErrTransportFailed("rest", "post", errors.New("connection refused"))
			},
			common.KindTransport, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{deliver: tt.deliver}
			metrics := NewMetrics()
			d := newTestDispatcher(client, Options{Metrics: metrics})
			if tt.target == nil {
				d.newClient = transport.NewClient
			}

			res := d.Dispatch(context.Background(), tt.payload, tt.binary, tt.target)

			assert.Equal(t, StateFailed, res.State)
			require.Error(t, res.Err)
			assert.NotEmpty(t, res.Reason())
			assert.Equal(t, tt.kind, res.Kind())
			assert.NotEmpty(t, res.RequestID)
			assert.Equal(t, tt.called, len(client.calls()) == 1)
		})
	}
}

func TestDispatcher_NoRetry(t *testing.T) {
	var attempts int32
	client := &fakeClient{deliver: func(context.Context) (transport.Ack, error) {
		atomic.AddInt32(&attempts, 1)
		return transport.Ack{}, common.ErrTransportFailed("rest", "post", errors.New("boom"))
	}}
	d := newTestDispatcher(client, Options{})

	res := d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDispatcher_RateLimit(t *testing.T) {
	client := &fakeClient{}
	metrics := NewMetrics()
	d := newTestDispatcher(client, Options{RateLimit: 0.001, Burst: 1, Metrics: metrics})

	first := d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)
	second := d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)

	assert.Equal(t, StateDelivered, first.State)
	assert.Equal(t, StateFailed, second.State)
	assert.True(t, errors.Is(second.Err, ErrRateLimited))
	assert.True(t, errors.Is(second.Err, common.ErrValidation))
	assert.Len(t, client.calls(), 1)
	assert.Equal(t, 1.0, counterValue(t, metrics, "rest", "failed", common.KindValidation))
}

func TestDispatcher_RateLimitIgnoresInvalidTarget(t *testing.T) {
	client := &fakeClient{}
	d := newTestDispatcher(client, Options{RateLimit: 0.001, Burst: 1})

	bad := d.Dispatch(context.Background(), []byte(`{}`), false, transport.RESTTarget{})
	good := d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)

	assert.Equal(t, StateFailed, bad.State)
	assert.False(t, errors.Is(bad.Err, ErrRateLimited))
	assert.Equal(t, StateDelivered, good.State)
	assert.NoError(t, good.Err)
	assert.Len(t, client.calls(), 1)
}

func TestDispatcher_SingleInFlight(t *testing.T) {
	var current, peak int32
	client := &fakeClient{deliver: func(context.Context) (transport.Ack, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return transport.Ack{}, nil
	}}
	d := newTestDispatcher(client, Options{Timeout: 5 * time.Second})

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	for _, res := range results {
		assert.Equal(t, StateDelivered, res.State)
	}
}

func TestDispatcher_TimeoutWaitingForSlot(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := &fakeClient{deliver: func(ctx context.Context) (transport.Ack, error) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return transport.Ack{}, nil
		case <-ctx.Done():
			return transport.Ack{}, common.ErrTransportFailed("rest", "post", ctx.Err())
		}
	}}
	d := newTestDispatcher(client, Options{Timeout: 2 * time.Second})

	firstDone := make(chan Result, 1)
	go func() {
		firstDone <- d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second := d.Dispatch(ctx, []byte(`{}`), false, restTarget)

	assert.Equal(t, StateFailed, second.State)
	assert.Equal(t, common.KindTransport, second.Kind())
	assert.True(t, errors.Is(second.Err, context.DeadlineExceeded))

	close(release)
	assert.Equal(t, StateDelivered, (<-firstDone).State)
	assert.Len(t, client.calls(), 1)
}

func TestDispatcher_DeliveryTimeout(t *testing.T) {
	client := &fakeClient{deliver: func(ctx context.Context) (transport.Ack, error) {
		<-ctx.Done()
		return transport.Ack{}, common.ErrTransportFailed("rest", "post", ctx.Err())
	}}
	d := newTestDispatcher(client, Options{Timeout: 20 * time.Millisecond})

	res := d.Dispatch(context.Background(), []byte(`{}`), false, restTarget)
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
}
