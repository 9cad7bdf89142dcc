// Package server provides the HTTP REST API for SOWGraph.
//
// The server exposes opportunity discovery, lifecycle management, analytics
// projections, and centrality analysis over JSON endpoints. Authentication
// is HTTP basic auth against the single configured credential; requests are
// tagged with a request id for log correlation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/sowgraph/pkg/analytics"
	"github.com/orneryd/sowgraph/pkg/auth"
	"github.com/orneryd/sowgraph/pkg/bridge"
	"github.com/orneryd/sowgraph/pkg/inference"
	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// Errors for HTTP operations.
var (
	ErrServerClosed     = errors.New("server closed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternalError    = errors.New("internal server error")
)

// Config holds HTTP server configuration.
type Config struct {
	// Address to bind to (default: "0.0.0.0")
	Address string
	// Port to listen on (default: 8474)
	Port int
	// ReadTimeout for requests
	ReadTimeout time.Duration
	// WriteTimeout for responses
	WriteTimeout time.Duration
	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration
	// MaxRequestSize in bytes (default: 1MB)
	MaxRequestSize int64
	// AccessLogEnabled for per-request logging
	AccessLogEnabled bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:          "0.0.0.0",
		Port:             8474,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     60 * time.Second,
		IdleTimeout:      120 * time.Second,
		MaxRequestSize:   1 << 20,
		AccessLogEnabled: true,
	}
}

// Server is the HTTP API server for SOWGraph.
type Server struct {
	config    *Config
	store     storage.Engine
	engine    *inference.Engine
	analytics *analytics.Service
	analyzer  *bridge.Analyzer
	auth      *auth.Authenticator

	httpServer *http.Server
	listener   net.Listener

	closed  atomic.Bool
	started time.Time

	// Metrics
	requestCount   atomic.Int64
	errorCount     atomic.Int64
	activeRequests atomic.Int64
}

// New creates a new HTTP server. The authenticator may be nil, in which case
// all requests are allowed.
func New(store storage.Engine, engine *inference.Engine, analyzer *bridge.Analyzer,
	authenticator *auth.Authenticator, config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if store == nil {
		return nil, fmt.Errorf("storage engine required")
	}
	if engine == nil {
		return nil, fmt.Errorf("inference engine required")
	}
	if analyzer == nil {
		analyzer = bridge.NewAnalyzer(store, nil)
	}

	return &Server{
		config:    config,
		store:     store,
		engine:    engine,
		analytics: analytics.NewService(store),
		analyzer:  analyzer,
		auth:      authenticator,
	}, nil
}

// Start begins listening for HTTP connections.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] serve error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stats returns server statistics.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Uptime:         time.Since(s.started),
		RequestCount:   s.requestCount.Load(),
		ErrorCount:     s.errorCount.Load(),
		ActiveRequests: s.activeRequests.Load(),
	}
}

// ServerStats holds server metrics.
type ServerStats struct {
	Uptime         time.Duration `json:"uptime"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	ActiveRequests int64         `json:"active_requests"`
}

// =============================================================================
// Router Setup
// =============================================================================

// Handler builds the full HTTP handler with routing and middleware. Exposed
// so tests can drive the server through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health/status endpoints (no auth required)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	// Discovery and lifecycle
	mux.HandleFunc("/sow/discover/", s.withAuth(s.handleDiscover))
	mux.HandleFunc("/sow/opportunities", s.withAuth(s.handleOpportunities))
	mux.HandleFunc("/sow/opportunities/", s.withAuth(s.handleOpportunityStatus))

	// Analytics projections
	mux.HandleFunc("/sow/analytics/methods", s.withAuth(s.handleAnalyticsMethods))
	mux.HandleFunc("/sow/analytics/complexity", s.withAuth(s.handleAnalyticsComplexity))
	mux.HandleFunc("/sow/analytics/top", s.withAuth(s.handleAnalyticsTop))
	mux.HandleFunc("/sow/analytics/rules", s.withAuth(s.handleAnalyticsRules))

	// Graph views and centrality
	mux.HandleFunc("/sow/graph/", s.withAuth(s.handleGraph))
	mux.HandleFunc("/sow/centrality/", s.withAuth(s.handleCentrality))

	handler := s.loggingMiddleware(mux)
	handler = s.recoveryMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = s.requestIDMiddleware(handler)

	return handler
}

// =============================================================================
// Middleware
// =============================================================================

// withAuth wraps a handler with HTTP basic authentication against the
// configured credential. A nil authenticator disables auth entirely.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			handler(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="sowgraph"`)
			s.writeError(w, http.StatusUnauthorized, "authentication required", ErrUnauthorized)
			return
		}

		if err := s.auth.Check(username, password); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrAccountLocked) {
				status = http.StatusTooManyRequests
			}
			s.writeError(w, status, err.Error(), ErrUnauthorized)
			return
		}

		handler(w, r)
	}
}

// requestIDMiddleware tags every request with an id for log correlation.
// Incoming X-Request-ID headers are honored so proxies can trace calls end
// to end.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Skip health checks for noise reduction
		if s.config.AccessLogEnabled && r.URL.Path != "/health" {
			log.Printf("[http] %s %s %s %d %v (req=%s)",
				clientIP(r), r.Method, r.URL.Path, wrapped.status,
				time.Since(start), requestIDFrom(r.Context()))
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				log.Printf("[http] panic: %v\n%s", err, buf[:n])

				s.errorCount.Add(1)
				s.writeError(w, http.StatusInternalServerError, "internal server error", ErrInternalError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)

		next.ServeHTTP(w, r)
	})
}

type contextKey string

const contextKeyRequestID contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// =============================================================================
// Health and Status Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Stats()

	nodes, err := s.store.NodeCount()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	edges, err := s.store.EdgeCount()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "running",
		"server": map[string]any{
			"uptime_seconds": stats.Uptime.Seconds(),
			"requests":       stats.RequestCount,
			"errors":         stats.ErrorCount,
			"active":         stats.ActiveRequests,
		},
		"graph": map[string]any{
			"nodes": nodes,
			"edges": edges,
		},
	})
}

// =============================================================================
// Discovery and Lifecycle Handlers
// =============================================================================

// DiscoveryResponse is the wire shape of a discovery run.
type DiscoveryResponse struct {
	RequirementID string                       `json:"requirement_id"`
	Opportunities []*sow.AnalyticalOpportunity `json:"opportunities"`
	Failures      []DiscoveryFailure           `json:"failures,omitempty"`
}

// DiscoveryFailure reports one inference source that could not be persisted.
type DiscoveryFailure struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// handleDiscover runs opportunity discovery for one requirement.
//
//	POST /sow/discover/{requirementID}
//
// A partially failed run still returns the opportunities that landed, with
// per-source failures listed alongside.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required", ErrMethodNotAllowed)
		return
	}

	requirementID := strings.TrimPrefix(r.URL.Path, "/sow/discover/")
	if requirementID == "" || strings.Contains(requirementID, "/") {
		s.writeError(w, http.StatusBadRequest, "requirement id required", ErrBadRequest)
		return
	}

	opportunities, err := s.engine.DiscoverOpportunities(r.Context(), requirementID)

	response := DiscoveryResponse{
		RequirementID: requirementID,
		Opportunities: opportunities,
	}

	var partial *inference.PartialFailure
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, response)

	case errors.As(err, &partial):
		for _, cause := range partial.Causes {
			response.Failures = append(response.Failures, DiscoveryFailure{
				SourceID: cause.SourceID,
				Error:    cause.Err.Error(),
			})
		}
		s.writeJSON(w, http.StatusOK, response)

	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), err)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusServiceUnavailable, err.Error(), err)

	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
	}
}

// handleOpportunities lists every discovered opportunity.
//
//	GET /sow/opportunities
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}

	opportunities, err := s.analytics.Opportunities()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"opportunities": opportunities})
}

// handleOpportunityStatus moves an opportunity through its lifecycle.
//
//	POST /sow/opportunities/{id}/status  {"status": "validated"}
func (s *Server) handleOpportunityStatus(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sow/opportunities/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		s.writeError(w, http.StatusNotFound, "unknown endpoint", ErrBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required", ErrMethodNotAllowed)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", ErrBadRequest)
		return
	}

	opp, err := sow.TransitionOpportunity(s.store, parts[0], sow.OpportunityStatus(req.Status))
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, opp)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, sow.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error(), err)
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
	}
}

// =============================================================================
// Analytics Handlers
// =============================================================================

func (s *Server) handleAnalyticsMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}
	stats, err := s.analytics.ByDiscoveryMethod()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"methods": stats})
}

func (s *Server) handleAnalyticsComplexity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}
	histogram, err := s.analytics.ComplexityHistogram()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"complexity": histogram})
}

func (s *Server) handleAnalyticsTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit", ErrBadRequest)
			return
		}
		limit = n
	}

	top, err := s.analytics.TopByBusinessValue(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"opportunities": top})
}

func (s *Server) handleAnalyticsRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}
	stats, err := s.analytics.RulePerformance()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rule_types": stats})
}

// handleGraph returns the nodes-and-edges view around one requirement.
//
//	GET /sow/graph/{requirementID}
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required", ErrMethodNotAllowed)
		return
	}

	requirementID := strings.TrimPrefix(r.URL.Path, "/sow/graph/")
	if requirementID == "" || strings.Contains(requirementID, "/") {
		s.writeError(w, http.StatusBadRequest, "requirement id required", ErrBadRequest)
		return
	}

	view, err := s.analytics.RequirementGraph(requirementID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, view)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), err)
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
	}
}

// handleCentrality recomputes centrality around one node and writes the
// scores back to the graph. Depth defaults to 2 hops; the analyzer clamps
// it to its configured maximum.
//
//	POST /sow/centrality/{nodeID}?depth=3
func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required", ErrMethodNotAllowed)
		return
	}

	nodeID := strings.TrimPrefix(r.URL.Path, "/sow/centrality/")
	if nodeID == "" || strings.Contains(nodeID, "/") {
		s.writeError(w, http.StatusBadRequest, "node id required", ErrBadRequest)
		return
	}

	depth := 2
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid depth", ErrBadRequest)
			return
		}
		depth = d
	}

	scores, err := s.analyzer.RunCentrality(r.Context(), storage.NodeID(nodeID), depth)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error(), err)
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), ErrInternalError)
	}
}

// =============================================================================
// Helpers
// =============================================================================

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// JSON helpers

func (s *Server) readJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, s.config.MaxRequestSize)
	return json.NewDecoder(body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	s.errorCount.Add(1)

	s.writeJSON(w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

func clientIP(r *http.Request) string {
	// Check X-Forwarded-For first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
