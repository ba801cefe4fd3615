// Package api exposes the scheduling core over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"praxis/internal/booking"
	"praxis/internal/conflict"
	"praxis/internal/db"
	"praxis/internal/export"
	"praxis/internal/metrics"
	"praxis/internal/model"
	"praxis/internal/slots"
	"praxis/internal/timeofday"
)

const apiKeyHeader = "X-API-Key"

// Store is the read side the handlers need beyond the booking service.
type Store interface {
	export.Source
	GetService(ctx context.Context, id string) (*model.Service, error)
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
}

type Options struct {
	Port           int
	APIKey         string // empty disables authentication
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer serves the /api/v1 endpoints.
type HTTPServer struct {
	server   *http.Server
	store    Store
	checker  *conflict.Checker
	slots    *slots.Generator
	bookings *booking.Service
	apiKey   string
	limiter  *rateLimiterStore
	logger   *zerolog.Logger
}

func NewHTTPServer(
	opts Options,
	store Store,
	checker *conflict.Checker,
	gen *slots.Generator,
	bookings *booking.Service,
	logger *zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		store:    store,
		checker:  checker,
		slots:    gen,
		bookings: bookings,
		apiKey:   opts.APIKey,
		logger:   logger,
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitRPS) + 1
		}
		s.limiter = newRateLimiterStore(rate.Limit(opts.RateLimitRPS), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/slots", s.handleSlots)
	mux.HandleFunc("POST /api/v1/conflicts", s.handleConflicts)
	mux.HandleFunc("POST /api/v1/appointments", s.handleBook)
	mux.HandleFunc("GET /api/v1/appointments/{id}", s.handleGetAppointment)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", s.handleSetStatus)
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", s.handleReschedule)
	mux.HandleFunc("GET /api/v1/export/day", s.handleExportDay)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.instrument(s.rateLimit(s.authenticate(mux))),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server started")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if !s.limiter.getLimiter(ip).Allow() {
			s.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded; try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(route, strconv.Itoa(rec.status), elapsed.Seconds())
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("HTTP request")
	})
}

// rateLimiterStore holds one token bucket per client IP.
type rateLimiterStore struct {
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
}

func newRateLimiterStore(limit rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = limiter
	}
	return limiter
}

func clientIP(r *http.Request) string {
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

// writeServiceError maps domain errors onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var ce *booking.ConflictError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "conflicts": ce.Conflicts})
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, db.ErrStatusChanged):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, timeofday.ErrMalformedTime), errors.Is(err, timeofday.ErrInvalidDuration),
		errors.Is(err, timeofday.ErrInvalidInterval), errors.Is(err, booking.ErrTooSoon),
		errors.Is(err, booking.ErrTooFar), errors.Is(err, booking.ErrInactiveService):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
