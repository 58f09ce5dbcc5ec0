package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"relay/internal/auth"
	"relay/internal/config"
	"relay/internal/observability/logging"
	"relay/internal/observability/metrics"
	"relay/internal/observability/middleware"
	"relay/internal/service"
	"relay/internal/store"
	transport "relay/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "relay",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("relay")

	logger.Info("starting service")

	db, err := store.Open(store.OpenConfig{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	svc := service.New(st)
	verifier := auth.NewVerifier(cfg.TokenSecret, cfg.TokenIssuer)
	mux := transport.NewRouter(svc, verifier, transport.Options{
		ContactRatePerMin: cfg.ContactRatePerMin,
		CORSOrigins:       cfg.CORSOrigins,
	})

	handler := middleware.WithRequestAndTrace(middleware.WithMetrics(mux))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("relay service listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
