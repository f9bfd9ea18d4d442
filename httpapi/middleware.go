package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client supplied request IDs.
const maxRequestIDLen = 128

// requestID propagates the caller's X-Request-ID or assigns a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// recovery turns a panicking handler into a 500 response.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic serving request",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument logs every request and records it in the request metrics
// under its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(status), elapsed)
		s.logger.Info("request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

// rateLimit refuses requests above the configured rate with 429 and a
// Retry-After hint.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := s.limiter.Reserve()
		if reservation.OK() && reservation.Delay() == 0 {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := 1
		if reservation.OK() {
			retryAfter = max(1, int(math.Ceil(reservation.Delay().Seconds())))
		}
		reservation.Cancel()
		s.metrics.IncrementRateLimited()

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfter),
		})
	})
}

// simulateLatency delays each request by a random duration within the
// configured bounds. A request abandoned while waiting is not served.
func (s *Server) simulateLatency(next http.Handler) http.Handler {
	if !s.config.LatencyEnabled() {
		return next
	}
	lo, hi := s.config.LatencyMin, s.config.LatencyMax
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := lo
		if span := hi - lo; span > 0 {
			d += time.Duration(s.jitter(int64(span) + 1))
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-r.Context().Done():
			writeError(r.Context(), w, s.logger, r.Context().Err())
			return
		case <-timer.C:
		}
		next.ServeHTTP(w, r)
	})
}

// compress gzips responses for clients that accept it.
func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
