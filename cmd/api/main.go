package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/momopay/internal/auth"
	"github.com/MrJamesThe3rd/momopay/internal/config"
	"github.com/MrJamesThe3rd/momopay/internal/database"
	"github.com/MrJamesThe3rd/momopay/internal/gateway"
	momopayHttp "github.com/MrJamesThe3rd/momopay/internal/http"
	paymentHandler "github.com/MrJamesThe3rd/momopay/internal/http/payment"
	"github.com/MrJamesThe3rd/momopay/internal/metrics"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
	paymentStore "github.com/MrJamesThe3rd/momopay/internal/payment/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	var (
		gatewayClient = gateway.NewClient(gateway.Config{
			BaseURL:           cfg.Gateway.BaseURL,
			ClientID:          cfg.Gateway.ClientID,
			ClientSecret:      cfg.Gateway.ClientSecret,
			Username:          cfg.Gateway.Username,
			Password:          cfg.Gateway.Password,
			APIKey:            cfg.Gateway.APIKey,
			UserAgent:         cfg.Gateway.UserAgent,
			Timeout:           cfg.Gateway.Timeout,
			Currency:          cfg.Payment.Currency,
			Channels:          cfg.Gateway.Channels,
			DefaultChannel:    cfg.Gateway.DefaultChannel,
			DescriptionPrefix: cfg.Gateway.DescriptionPrefix,
			CallbackURL:       cfg.CallbackURL(),
			CallbackToken:     cfg.Gateway.CallbackToken,
			ReturnURL:         cfg.App.ReturnURL,
		}, nil)
		tokenCache = gateway.NewTokenCache(gatewayClient, cfg.Gateway.TokenMargin, cfg.Gateway.TokenDefaultTTL)
	)

	paymentService := payment.NewService(paymentStore.New(db), tokenCache, gatewayClient, payment.Options{
		IDFields:     cfg.Gateway.IDFields,
		StatusFields: cfg.Gateway.StatusFields,
	})

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	router := momopayHttp.New(paymentHandler.NewHandler(paymentService, cfg.Gateway.CallbackToken), momopayHttp.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Verifier:       verifier,
		DB:             db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout + cfg.Gateway.Timeout,
	}

	go func() {
		slog.Info("starting server", "port", srv.Addr, "env", cfg.App.Env)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
