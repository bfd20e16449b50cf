package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"reservio/internal/holds"
	"reservio/internal/metrics"
	"reservio/internal/ratelimit"
	"reservio/internal/service"
	"reservio/internal/slots"
)

// Config holds HTTP server settings.
type Config struct {
	Host string
	Port int
	// APIKeys, when non-empty, require a matching X-Api-Key header on
	// every request.
	APIKeys []string
}

// HTTPServer exposes the booking engine over HTTP.
type HTTPServer struct {
	server  *http.Server
	engine  *service.Engine
	limiter ratelimit.Limiter
	apiKeys map[string]bool
	log     *zerolog.Logger
}

// NewHTTPServer builds the server and its routes.
func NewHTTPServer(cfg Config, engine *service.Engine, limiter ratelimit.Limiter, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		engine:  engine,
		limiter: limiter,
		apiKeys: make(map[string]bool),
		log:     logger,
	}
	for _, k := range cfg.APIKeys {
		s.apiKeys[k] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots/search", s.tracked("slots_search", s.auth(s.limited(s.handleSearch))))
	mux.HandleFunc("/api/v1/holds", s.tracked("holds", s.auth(s.limited(s.handleHold))))
	mux.HandleFunc("/api/v1/holds/extend", s.tracked("holds_extend", s.auth(s.limited(s.handleExtend))))
	mux.HandleFunc("/api/v1/holds/release", s.tracked("holds_release", s.auth(s.limited(s.handleRelease))))
	mux.HandleFunc("/api/v1/holds/release-all", s.tracked("holds_release_all", s.auth(s.limited(s.handleReleaseAll))))
	mux.HandleFunc("/api/v1/availability", s.tracked("availability", s.auth(s.handleAvailability)))
	mux.HandleFunc("/api/v1/bookings/confirm", s.tracked("bookings_confirm", s.auth(s.limited(s.handleConfirm))))
	mux.HandleFunc("/api/v1/stats", s.tracked("stats", s.auth(s.handleStats)))
	mux.HandleFunc("/api/v1/audit/export", s.tracked("audit_export", s.auth(s.handleAuditExport)))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// auth enforces the X-Api-Key header when keys are configured.
func (s *HTTPServer) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) > 0 && !s.apiKeys[r.Header.Get("X-Api-Key")] {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next(w, r)
	}
}

// limited applies the per-client rate limit to mutating endpoints.
func (s *HTTPServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ok, err := s.limiter.Allow(r.Context(), clientKey(r))
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limit check failed")
			}
			if !ok {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r)
	}
}

// clientKey identifies the caller for rate limiting: the declared client
// id when present, the remote host otherwise.
func clientKey(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, slots.ErrNoCapableProfessional):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, holds.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, holds.ErrSlotAlreadyHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, holds.ErrHoldNotOwned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, holds.ErrHoldExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrPersistence):
		writeError(w, http.StatusBadGateway, "booking storage unavailable")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// statusRecorder captures the response code for the request metric.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// tracked counts requests per endpoint and status class.
func (s *HTTPServer) tracked(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.IncHTTPRequest(endpoint, statusClass(rec.status))
	}
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
