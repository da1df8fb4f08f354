package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/iteach/internal/auth"
	"github.com/Spok95/iteach/internal/bot"
	"github.com/Spok95/iteach/internal/config"
	"github.com/Spok95/iteach/internal/dialog"
	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/domain/users"
	"github.com/Spok95/iteach/internal/infra/db"
	"github.com/Spok95/iteach/internal/infra/generator"
	httpx "github.com/Spok95/iteach/internal/infra/http"
	"github.com/Spok95/iteach/internal/infra/logger"
	"github.com/Spok95/iteach/internal/infra/metrics"
	"github.com/Spok95/iteach/internal/infra/payments"
	"github.com/Spok95/iteach/internal/infra/secrets"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, "api")

	if cfg.Postgres.Migrations {
		if err := db.Migrate(cfg.Postgres.DSN, log); err != nil {
			log.Error("migrations failed", "err", err)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	creds, err := secrets.NewClient(cfg.Secrets.URL, cfg.Secrets.APIKey, cfg.Secrets.Timeout, log).
		WithFallback(cfg.Credentials).
		Load(ctx)
	if err != nil {
		log.Error("load secrets failed", "err", err)
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledger := subscriptions.NewLedger(subscriptions.NewRepo(pool), log, m)
	profiles := users.NewRepo(pool)

	model := creds.Gemini.Model
	if model == "" {
		model = cfg.Generator.Model
	}
	gen, err := generator.New(ctx, creds.Gemini.APIKey, model, m, log)
	if err != nil {
		log.Error("generator init failed", "err", err)
		return
	}
	defer func() { _ = gen.Close() }()

	svc := exercises.NewService(exercises.Deps{
		Store:     exercises.NewRepo(pool),
		Gate:      subscriptions.NewGate(ledger, log),
		Profiles:  profiles,
		Users:     profiles,
		Generator: gen,
		Log:       log,
	})

	// нотификатор задаётся до старта HTTP
	var modBot *bot.Bot
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
		} else {
			modBot = bot.New(api, log, svc, dialog.NewRepo(pool), cfg.Telegram.AdminChatID)
			svc.SetNotifier(modBot)
			log.Info("moderation bot enabled", "account", api.Self.UserName)
		}
	} else {
		log.Info("telegram token not set, moderation bot disabled")
	}

	prices := payments.Prices{Premium: creds.Stripe.PremiumPriceID, Pro: creds.Stripe.ProPriceID}
	webhook := payments.NewHandler(log, ledger, creds.Stripe.WebhookSecret, prices, m)
	checkout := payments.NewService(creds.Stripe.SecretKey, prices, cfg.HTTP.PublicURL)

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = reg
	}
	srv := httpx.New(cfg.HTTP.Addr, httpx.Deps{
		Log:            log,
		Metrics:        m,
		Gatherer:       gatherer,
		Auth:           auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.App.AdminEmails),
		Ledger:         ledger,
		Profiles:       profiles,
		Exercises:      svc,
		Checkout:       checkout,
		Webhook:        webhook,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Generation: httpx.RateLimitConfig{
			RequestsPerMinute: cfg.Generator.RequestsPerMinute,
			Burst:             cfg.Generator.Burst,
		},
		ReadTimeout: cfg.HTTP.ReadTimeout,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	if modBot != nil {
		go func() {
			if err := modBot.Run(ctx, cfg.Telegram.Timeout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
