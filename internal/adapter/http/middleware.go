package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
)

const requestIDHeader = "X-Request-ID"

// LoggingMiddleware attaches a request id (taken from X-Request-ID when the
// caller sent one) to the request context and echoes it back.
func LoggingMiddleware(lgr logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := r.Header.Get(requestIDHeader); id != "" {
				ctx = logger.WithRequestID(ctx, id)
			}
			ctx, requestID := logger.EnsureRequestID(ctx)
			w.Header().Set(requestIDHeader, requestID)

			lgr.Debug("http_request", fmt.Sprintf("%s %s", r.Method, r.URL.Path), requestID, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			next.ServeHTTP(w, r.WithContext(ctx))

			lgr.Debug("http_response", "Request completed", requestID, map[string]interface{}{
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

func RecoveryMiddleware(lgr logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					_, requestID := logger.EnsureRequestID(r.Context())
					lgr.Error("panic_recovered", "Panic recovered", requestID, nil, fmt.Errorf("%v", err))
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
