package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/iteach/internal/config"
	"github.com/Spok95/iteach/internal/infra/logger"
	"github.com/Spok95/iteach/internal/infra/secrets"
)

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, "secrets-gateway")
	if err := cfg.Credentials.Validate(); err != nil {
		// шлюз стартует и с неполным набором, клиенты увидят ошибку сами
		log.Warn("credentials incomplete", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := secrets.NewGateway(cfg.Gateway.APIKey, cfg.Credentials, log)
	srv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           gw.Handler(cfg.Gateway.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway server error", "err", err)
			stop()
		}
	}()
	log.Info("secrets gateway started", "addr", cfg.Gateway.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
