// Package trace assigns request ids, logs completed requests and keeps
// request counters for the shutdown report.
package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"networth/internal/log"
)

// DefaultSlowThreshold is the duration from which a request counts as slow.
const DefaultSlowThreshold = 2 * time.Second

type Middleware struct {
	extractIP     func(*http.Request) string
	logger        *log.StructuredLogger
	slowThreshold time.Duration

	totalRequests   atomic.Int64
	clientErrors    atomic.Int64
	errorResponses  atomic.Int64
	slowRequests    atomic.Int64
	totalDurationUs atomic.Int64
}

// Metrics is a snapshot of request counters
type Metrics struct {
	TotalRequests       int64
	ClientErrors        int64
	ErrorResponses      int64
	SlowRequests        int64
	AverageResponseTime int64 // in microseconds
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP:     extractIP,
		logger:        log.NewStructuredLogger(logger.WithComponent(log.ComponentTrace)),
		slowThreshold: DefaultSlowThreshold,
	}
}

// Middleware stores the request id in the context and echoes it in
// X-Request-ID. The chi request id is reused when one was assigned upstream.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := chimw.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := log.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.totalRequests.Add(1)
		m.totalDurationUs.Add(duration.Microseconds())
		switch {
		case rw.statusCode >= 500:
			m.errorResponses.Add(1)
		case rw.statusCode >= 400:
			m.clientErrors.Add(1)
		}
		if duration >= m.slowThreshold {
			m.slowRequests.Add(1)
		}

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.totalRequests.Load()
	var avg int64
	if total > 0 {
		avg = m.totalDurationUs.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ClientErrors:        m.clientErrors.Load(),
		ErrorResponses:      m.errorResponses.Load(),
		SlowRequests:        m.slowRequests.Load(),
		AverageResponseTime: avg,
	}
}
