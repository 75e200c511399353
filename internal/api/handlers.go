package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/dispatch"
	"github.com/FairForge/containerdispatch/internal/request"
	"github.com/FairForge/containerdispatch/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestBody = 64 << 10

// sendRequest is the form as posted by a frontend. Empty transport, format
// and encryption fall back to the configured defaults.
type sendRequest struct {
	request.Fields
	Transport  string `json:"transport"`
	Format     string `json:"format"`
	Encryption string `json:"encryption"`
}

type sendResponse struct {
	RequestID string         `json:"request_id"`
	State     dispatch.State `json:"state"`
	Transport transport.Kind `json:"transport,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Ack       *transport.Ack `json:"ack,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.Header.Get(transport.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx = common.WithRequestID(ctx, id)

	order, err := s.decodeOrder(r)
	if err != nil {
		s.logger.Warn("rejected request", zap.String("request_id", id), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, sendResponse{
			RequestID: id,
			State:     dispatch.StateFailed,
			Kind:      common.KindOf(err),
			Reason:    err.Error(),
		})
		return
	}

	res := s.sender.Send(ctx, order)

	resp := sendResponse{
		RequestID: res.RequestID,
		State:     res.State,
		Transport: res.Transport,
	}
	status := http.StatusOK
	if res.Delivered() {
		ack := res.Ack
		resp.Ack = &ack
	} else {
		resp.Kind = res.Kind()
		resp.Reason = res.Reason()
		status = http.StatusBadGateway
		if resp.Kind == common.KindValidation {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) decodeOrder(r *http.Request) (dispatch.Order, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return dispatch.Order{}, common.ErrInvalid("body", "unreadable: %v", err)
	}
	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return dispatch.Order{}, common.ErrInvalid("body", "malformed JSON: %v", err)
	}

	kindName := req.Transport
	if kindName == "" {
		kindName = s.config.Dispatch.Transport
	}
	kind, err := transport.ParseKind(kindName)
	if err != nil {
		return dispatch.Order{}, err
	}
	target, err := s.config.Target(kind)
	if err != nil {
		return dispatch.Order{}, err
	}

	format, encryption := req.Format, req.Encryption
	if format == "" {
		format = s.config.Dispatch.Format
	}
	if encryption == "" {
		encryption = s.config.Dispatch.Encryption
	}
	framing, err := dispatch.ParseFraming(format, encryption)
	if err != nil {
		return dispatch.Order{}, err
	}

	return dispatch.Order{Fields: req.Fields, Framing: framing, Target: target}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
