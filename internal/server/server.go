// Package server exposes the pipeline over HTTP for `pomgen serve`.
//
// Invocations are JSON pipeline requests; failures carry the same
// machine-readable Failure the CLI prints with --format json. Health
// probes follow the liveness/readiness/startup split of
// internal/health.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/health"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/metrics"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/telemetry"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 4 << 20

// Server serves the pipeline API and health endpoints.
type Server struct {
	httpServer      *http.Server
	coordinator     *pipeline.Coordinator
	probeManager    *health.ProbeManager
	logger          *log.Logger
	metrics         *metrics.Metrics
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
	retries         int
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":8787", "127.0.0.1:8787")
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout defaults to 60 seconds; snapshot discovery and
	// verification run inside the request.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration

	// Retries is how often an invocation that lost the registry race is
	// retried before the conflict is returned. Zero disables retries.
	Retries int

	Logger *log.Logger

	// Telemetry traces API requests. Probe and scrape requests are not
	// traced.
	Telemetry *telemetry.Provider
}

// NewServer wires the routes.
func NewServer(coord *pipeline.Coordinator, probeManager *health.ProbeManager, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.Noop()
	}

	promReg, m := metrics.NewRegistry()
	s := &Server{
		metrics:         m,
		coordinator:     coord,
		probeManager:    probeManager,
		logger:          cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
		retries:         cfg.Retries,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/invoke", s.handleInvoke)
	mux.HandleFunc("POST /v1/run", s.handleRun)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/components", s.handleComponents)
	mux.HandleFunc("GET /v1/components/{name}", s.handleComponent)

	mux.HandleFunc("GET /health/live", s.handleLiveness)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)
	mux.HandleFunc("GET /health/startup", s.handleStartup)
	mux.HandleFunc("GET /healthz", s.handleReadiness)
	mux.Handle("GET /metrics", metrics.HandlerFor(promReg))

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      instrument(s.withRequestLog(m.Instrument(mux)), cfg.Telemetry),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func instrument(h http.Handler, tel *telemetry.Provider) http.Handler {
	return otelhttp.NewHandler(h, "pomgen",
		otelhttp.WithTracerProvider(tel.TracerProvider()),
		otelhttp.WithMeterProvider(tel.MeterProvider()),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/health") && r.URL.Path != "/metrics"
		}),
	)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("cannot listen on %s", s.httpServer.Addr), err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	s.probeManager.MarkInitialized()
	s.logger.Info("server listening", "address", l.Addr().String())
	return s.httpServer.Serve(l)
}

// Shutdown fails readiness, stops keep-alives and drains connections
// for at most the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probeManager.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		l := s.logger.With("request_id", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(log.NewContext(r.Context(), l)))

		l.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Error pipeline.Failure `json:"error"`
}

// statusFor maps pipeline error kinds to HTTP status codes.
func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindInvalidInput:
		return http.StatusBadRequest
	case errors.KindNamingConflict, errors.KindStaleRegistryState:
		return http.StatusConflict
	case errors.KindEmptyStory, errors.KindNoElementsFound, errors.KindUnknownCapability, errors.KindScenarioPersonaMismatch:
		return http.StatusUnprocessableEntity
	case errors.KindUnresolvedDependency:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	f := pipeline.FailureFrom(err)
	writeJSON(w, statusFor(f.Kind), ErrorBody{Error: f})
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("cannot read body: %v", err))
	}
	return data, nil
}

// POST /v1/invoke with a JSON pipeline.Request.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req pipeline.Request
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, errors.NewInvalidRequestError(fmt.Sprintf("malformed JSON: %v", err)))
		return
	}

	if r.URL.Query().Get("dry_run") == "true" {
		p, err := s.coordinator.Preview(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	var resp pipeline.Response
	if s.retries > 0 {
		resp, err = s.coordinator.InvokeWithRetry(r.Context(), req, s.retries+1, 25*time.Millisecond)
	} else {
		resp, err = s.coordinator.Invoke(r.Context(), req)
	}
	s.metrics.ObserveInvocation(string(req.Stage), resp.RegistryVersion, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunResult is the body of a successful POST /v1/run.
type RunResult struct {
	Responses []pipeline.Response `json:"responses"`
}

// RunFailure is the body of a failed POST /v1/run: the steps that
// completed, the 1-based failing step and its failure.
type RunFailure struct {
	Responses []pipeline.Response `json:"responses"`
	Step      int                 `json:"step"`
	Error     pipeline.Failure    `json:"error"`
}

// POST /v1/run with a YAML or JSON plan.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := pipeline.ParsePlan("request body", data)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.coordinator.Run(r.Context(), plan)
	for _, resp := range out {
		s.metrics.ObserveInvocation(resp.Stage, resp.RegistryVersion, nil)
	}
	if err != nil {
		s.metrics.ObserveInvocation(string(plan.Steps[len(out)].Stage), 0, err)
		f := pipeline.FailureFrom(err)
		writeJSON(w, statusFor(f.Kind), RunFailure{Responses: out, Step: len(out) + 1, Error: f})
		return
	}
	writeJSON(w, http.StatusOK, RunResult{Responses: out})
}

// GET /v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.coordinator.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.DriftedArtifacts.Set(float64(report.Drifted + report.Missing))
	writeJSON(w, http.StatusOK, report)
}

// GET /v1/components
func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	comps, err := s.coordinator.Registry().Components()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]pipeline.Summary, 0, len(comps))
	for _, c := range comps {
		out = append(out, pipeline.Summarize(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /v1/components/{name}
func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	c, err := s.coordinator.Registry().Lookup(r.PathValue("name"))
	if err != nil {
		if pe, ok := errors.As(err); ok && pe.Code == errors.ErrCodeComponentNotFound {
			writeJSON(w, http.StatusNotFound, ErrorBody{Error: pipeline.FailureFrom(err)})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	writeJSON(w, status, result)
}

// Liveness always answers 200, degraded while shutting down.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckLiveness(r.Context()), http.StatusOK)
}

// Readiness answers 503 while shutting down or when a checker fails.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}

// Startup answers 503 until Serve was called.
func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckStartup(r.Context()), http.StatusServiceUnavailable)
}
