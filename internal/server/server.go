// Package server exposes the signal engine over HTTP. The webhook only
// schedules signals; reconciliation outcomes go to logs, metrics and the
// journal, never back to the caller.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

// maxPayloadBytes bounds webhook bodies.
const maxPayloadBytes = 64 << 10

const shutdownTimeout = 10 * time.Second

type webhookPayload struct {
	Signal *string `json:"signal"`
}

type webhookResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP front end of the signal engine.
type Server struct {
	mu         sync.Mutex
	engine     engine.SignalEngine
	gatherer   prometheus.Gatherer
	httpServer *http.Server
	listener   net.Listener
	log        *logger.Logger
}

// NewServer creates a server for signalEngine. gatherer backs /metrics; nil
// means the default Prometheus registry.
func NewServer(signalEngine engine.SignalEngine, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		mu:         sync.Mutex{},
		engine:     signalEngine,
		gatherer:   gatherer,
		httpServer: nil,
		listener:   nil,
		log:        log.Named("server"),
	}
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// Start listens on address (":0" picks a free port) and serves in the background.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.log.Info("Webhook server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// Address returns the listening address.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload

	body := http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Signal == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid payload"})

		return
	}

	signal := *payload.Signal

	requestID, err := s.engine.Enqueue(r.Context(), signal)
	if err != nil {
		s.log.Warn("Signal not scheduled", zap.String("signal", signal), zap.Error(err))

		status := http.StatusInternalServerError
		if errors.HasCode(err, errors.ErrCodeQueueFull) || errors.HasCode(err, errors.ErrCodeEngineStopped) {
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, errorResponse{Error: err.Error()})

		return
	}

	s.log.Info("Signal received", zap.String("signal", signal), zap.String("request_id", requestID))

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:    "Order for " + signal + " received",
		RequestID: requestID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.log.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
