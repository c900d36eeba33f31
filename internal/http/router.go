package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/momopay/internal/auth"
	"github.com/MrJamesThe3rd/momopay/internal/http/payment"
	"github.com/MrJamesThe3rd/momopay/internal/metrics"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	AllowedOrigins []string
	// Nil disables buyer identification; every request is a guest.
	Verifier *auth.Verifier
	DB       Pinger
}

func New(paymentsV1 *payment.Handler, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		MaxAge:         300,
	}))

	router.Get("/health", health(opts.DB))
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			if opts.Verifier != nil {
				r.Use(Buyer(opts.Verifier))
			}

			paymentsV1.Routes(r)
		})
	})

	return router
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				status, code = "database unavailable", http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
