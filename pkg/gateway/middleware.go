package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mindglow/mindglow/pkg/logger"
	"github.com/mindglow/mindglow/pkg/observability"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics records request counts and latency by route pattern and tags
// each response with a request id.
func withMetrics(m *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		elapsed := time.Since(start)
		m.HTTPRequest(r.Method, path, rec.status, elapsed)
		logger.DebugCF("gateway", "Request served",
			map[string]any{
				"request_id":  id,
				"method":      r.Method,
				"route":       path,
				"status":      rec.status,
				"duration_ms": elapsed.Milliseconds(),
			})
	})
}

// withCORS allows every origin, method and header.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		reqHeaders := r.Header.Get("Access-Control-Request-Headers")
		if reqHeaders == "" {
			reqHeaders = "*"
		}
		h.Set("Access-Control-Allow-Headers", reqHeaders)
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.ErrorCF("gateway", "Handler panicked", map[string]any{"panic": v, "path": r.URL.Path})
				writeJSON(w, http.StatusInternalServerError, errorJSON{Detail: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
