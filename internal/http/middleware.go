package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrJamesThe3rd/momopay/internal/auth"
	"github.com/MrJamesThe3rd/momopay/internal/metrics"
)

// Metrics records request latency by chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPDuration.
			WithLabelValues(r.Method, routePattern(r), strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	return "unmatched"
}

// Buyer attaches the bearer token's subject to the request context. Requests
// without a valid token carry on as guests.
func Buyer(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := verifier.Subject(strings.TrimSpace(header[len("Bearer "):]))
			if err != nil {
				slog.Debug("ignoring buyer token", "error", err)
				next.ServeHTTP(w, r)

				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithBuyer(r.Context(), subject)))
		})
	}
}
