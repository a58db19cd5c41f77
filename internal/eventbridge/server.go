package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/pipeline"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

var errServerDisabled = errors.New("eventbridge: server disabled")

// Server exposes the assessment state and the borrower record over HTTP:
//
//	GET  /health   liveness and protocol version
//	GET  /state    current pipeline snapshot
//	GET  /input    current borrower record
//	POST /input    {"field": ..., "value": ...}; feeds the staleness watcher
//	POST /run      interactive run over the current record
//	GET  /events   server-sent pipeline events
//	GET  /metrics  Prometheus exposition, when a gatherer is configured
type Server struct {
	settings Settings
	pipeline Pipeline
	store    *borrower.Store
	watcher  Watcher
	router   *Router
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithWatcher routes accepted input edits to w.
func WithWatcher(w Watcher) Option {
	return func(s *Server) {
		if w != nil {
			s.watcher = w
		}
	}
}

// WithRouter enables GET /events.
func WithRouter(r *Router) Option {
	return func(s *Server) {
		if r != nil {
			s.router = r
		}
	}
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server over p and store.
func NewServer(settings Settings, p Pipeline, store *borrower.Store, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("eventbridge: pipeline is required")
	}
	if store == nil {
		return nil, fmt.Errorf("eventbridge: input store is required")
	}
	settings.normalize()
	s := &Server{
		settings: settings,
		pipeline: p,
		store:    store,
		logger:   slog.Default(),
		clock:    time.Now,
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Handler returns the route table. Start serves it; tests can mount it on
// httptest directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /input", s.handleGetInput)
	mux.HandleFunc("POST /input", s.handleSetInput)
	mux.HandleFunc("POST /run", s.handleRun)
	if s.router != nil {
		mux.HandleFunc("GET /events", s.handleEvents)
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if !s.settings.Enabled {
		return errServerDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("eventbridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("eventbridge: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("eventbridge: serve error", "error", err)
		}
	}()
	s.logger.Info("eventbridge: listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests
// to exit. Event streams are closed first so they do not hold shutdown open.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if s.router != nil {
		s.router.Close()
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		UptimeSeconds: s.uptimeSeconds(),
	}
	if s.router != nil {
		resp.Subscribers = s.router.Subscribers()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Snapshot())
}

func (s *Server) handleGetInput(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !s.decode(w, r, &req) {
		return
	}
	prev, next, err := s.store.Set(req.Field, req.Value)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, borrower.ErrUnknownField) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	armed := false
	if s.watcher != nil {
		armed = s.watcher.Observe(prev, next)
	}
	writeJSON(w, http.StatusOK, inputResponse{Input: next, Armed: armed})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	started := s.clock()
	state, err := s.pipeline.RunInteractive(r.Context(), s.store.Get())
	resp := runResponse{State: state, Elapsed: s.clock().Sub(started)}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Error = err.Error()
	var failure *pipeline.StageFailure
	switch {
	case errors.Is(err, pipeline.ErrSuperseded):
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &failure):
		resp.Failure = failure
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		s.logger.Warn("eventbridge: run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// handleEvents streams pipeline events as server-sent events until the client
// goes away or the router closes the subscription.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server-wide write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})
	sub := s.router.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Debug("eventbridge: stream flush unsupported", "error", err)
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload exceeds limit"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeSSE(w http.ResponseWriter, event pipeline.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event.Type)
	fmt.Fprintf(&b, "data: %s\n\n", payload)
	_, err = w.Write([]byte(b.String()))
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
