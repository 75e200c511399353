package receiver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/FairForge/containerdispatch/internal/request"
	"github.com/FairForge/containerdispatch/internal/transport"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	AckMessage = "Request received and will be processed."

	maxBodyBytes = 1 << 20
)

// RequestHandler is called with every decoded request
type RequestHandler func(ctx context.Context, req request.ContainerRequest) error

type reply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Server struct {
	decoder    Decoder
	onRequest  RequestHandler
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
}

func NewServer(addr string, decoder Decoder, onRequest RequestHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		decoder:   decoder,
		onRequest: onRequest,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc(transport.DefaultRESTPath, s.handleExecute).Methods(http.MethodPost)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeReply(w, http.StatusBadRequest, "error", "unreadable body")
		return
	}

	req, err := s.decoder.Decode(body)
	if err != nil {
		s.logger.Warn("rejected request",
			zap.String("request_id", r.Header.Get(transport.RequestIDHeader)),
			zap.Error(err))
		s.writeReply(w, http.StatusBadRequest, "error", err.Error())
		return
	}

	if s.onRequest != nil {
		if err := s.onRequest(r.Context(), req); err != nil {
			s.writeReply(w, http.StatusInternalServerError, "error", err.Error())
			return
		}
	}

	s.logger.Info("request received",
		zap.String("request_id", r.Header.Get(transport.RequestIDHeader)),
		zap.String("runtime", string(req.Runtime)),
		zap.String("operation", string(req.Operation)),
		zap.String("container", req.Parameters.ContainerName))

	s.writeReply(w, http.StatusOK, "success", AckMessage)
}

func (s *Server) writeReply(w http.ResponseWriter, status int, state, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply{Status: state, Message: message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("latency", time.Since(start)))
	})
}

func (s *Server) Start() error {
	s.logger.Info("starting receiver", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
