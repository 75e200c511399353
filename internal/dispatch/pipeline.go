package dispatch

import (
	"context"

	"github.com/FairForge/containerdispatch/internal/codec"
	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/crypto"
	"github.com/FairForge/containerdispatch/internal/logging"
	"github.com/FairForge/containerdispatch/internal/request"
	"github.com/FairForge/containerdispatch/internal/transport"
	"go.uber.org/zap"
)

// Order is one send as requested by a frontend
type Order struct {
	Fields  request.Fields
	Framing Framing
	Target  transport.Target
}

// Pipeline turns raw fields into a delivered request:
// fields -> request -> payload -> envelope -> dispatch.
type Pipeline struct {
	box        *crypto.Box
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewPipeline(box *crypto.Box, dispatcher *Dispatcher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{box: box, dispatcher: dispatcher, logger: logger}
}

func (p *Pipeline) Send(ctx context.Context, order Order) Result {
	ctx, _ = p.dispatcher.begin(ctx, order.Target)

	body, err := p.Build(order.Fields, order.Framing)
	if err != nil {
		return p.dispatcher.Reject(ctx, order.Target, err)
	}

	logging.WithContext(ctx, p.logger).Debug("request built",
		zap.String("format", string(order.Framing.Format)),
		zap.String("algorithm", string(order.Framing.Algorithm)),
		zap.Int("bytes", len(body)))

	return p.dispatcher.Dispatch(ctx, body, order.Framing.Binary(), order.Target)
}

// Build produces the exact bytes that would be put on the wire
func (p *Pipeline) Build(fields request.Fields, framing Framing) ([]byte, error) {
	req, err := request.New(fields)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Encode(req, framing.Format)
	if err != nil {
		return nil, err
	}
	if !framing.Algorithm.Enabled() {
		return payload.Bytes(), nil
	}
	if p.box == nil {
		return nil, common.ErrInvalid("encryption", "no key store configured for %s", framing.Algorithm)
	}
	return p.box.Seal(payload.Bytes(), framing.Algorithm)
}
