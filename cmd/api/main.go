package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"animal-shelter/internal/adapters/auth/jwtauth"
	pg "animal-shelter/internal/adapters/storage/postgres"
	"animal-shelter/internal/platform/config"
	"animal-shelter/internal/platform/logger"
	"animal-shelter/internal/platform/otel"
	"animal-shelter/internal/ports/auth"
	"animal-shelter/internal/router"

	"go.uber.org/zap"
)

// @title Animal Shelter API
// @version 1.0
// @description Registro de animales, adopciones y voluntariado del refugio.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Fatal("config", zap.Error(err))
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, App: cfg.AppName})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.AppName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatal("otel setup", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		log.Info("storage: postgres")
	} else {
		log.Warn("storage: in-memory (DB_DSN not set)")
	}

	var verifier auth.AuthVerifier
	if !cfg.DevAuth() {
		verifier = jwtauth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		log.Warn("auth: dev headers X-Debug-User-ID / X-Debug-User-Roles (JWT_SECRET not set)")
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			AuthVerifier: verifier,
			DB:           db,
			Logger:       log,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("starting server", zap.String("addr", cfg.Addr()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
