package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PulseOutreach/internal/api"
	"PulseOutreach/internal/auth"
	"PulseOutreach/internal/config"
	"PulseOutreach/internal/content"
	"PulseOutreach/internal/db"
	"PulseOutreach/internal/email"
	"PulseOutreach/internal/ledger"
	"PulseOutreach/internal/metrics"
	"PulseOutreach/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) error{}

	// ------------------------------------------------
	// Ledger
	// ------------------------------------------------
	var ledgerStore ledger.Store
	switch cfg.LedgerBackend {
	case "postgres":
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer store.Close()

		if cfg.AutoMigrate {
			if err := store.Migrate(ctx, logger); err != nil {
				logger.Fatal("database migration failed", zap.Error(err))
			}
		}
		checks["ledger"] = store.HealthCheck
		ledgerStore = store
	default:
		logger.Warn("using in-memory ledger, sent history is lost on restart")
		ledgerStore = ledger.NewMemoryStore()
	}
	sentLedger := ledger.New(ledgerStore, logger)

	// ------------------------------------------------
	// OAuth token store
	// ------------------------------------------------
	var tokens auth.TokenStore = auth.NewMemoryTokenStore()
	if cfg.TokenStore == "redis" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		tokens = auth.NewRedisTokenStore(rdb)
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ------------------------------------------------
	// Content generator (optional)
	// ------------------------------------------------
	var generator api.ContentGenerator
	var campaignGenerator worker.Generator
	if gemini, err := content.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		logger.Warn("AI personalization disabled", zap.Error(err))
	} else {
		g, _ := content.NewGenerator(gemini)
		generator, campaignGenerator = g, g
	}

	// ------------------------------------------------
	// Gmail OAuth (optional)
	// ------------------------------------------------
	gmailAuth, err := auth.NewGmail(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, tokens, logger)
	if err != nil {
		logger.Warn("gmail oauth disabled", zap.Error(err))
	}

	// ------------------------------------------------
	// Mail transport
	// ------------------------------------------------
	senders := senderSource(cfg, gmailAuth, logger)

	// ------------------------------------------------
	// Campaign worker
	// ------------------------------------------------
	campaigns := worker.NewManager(sentLedger, campaignGenerator, worker.Options{
		RatePerHour:      cfg.MaxEmailsPerHour,
		DefaultMaxEmails: cfg.DefaultMaxEmails,
		SendTimeout:      cfg.SendTimeout,
		CampaignScoped:   cfg.CampaignScoped(),
	}, logger)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Campaigns: campaigns,
		Ledger:    sentLedger,
		Senders:   senders,
		Generator: generator,
		Auth:      gmailAuth,
		Checks:    checks,
		Cfg:       cfg,
		Log:       logger,
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.NewRouter(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ------------------------------------------------
	// Run until shutdown
	// ------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("api server started",
			zap.String("port", cfg.APIPort),
			zap.String("mail_provider", cfg.MailProvider),
			zap.String("ledger", cfg.LedgerBackend),
		)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}

		// stop the running campaign after no new one can start
		if err := campaigns.Shutdown(shutdownCtx); err != nil {
			logger.Error("campaign shutdown failed", zap.Error(err))
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

// senderSource picks the transport for MAIL_PROVIDER. Gmail senders are
// built per campaign from the currently connected account.
func senderSource(cfg *config.Config, gmailAuth *auth.Gmail, logger *zap.Logger) api.SenderSource {
	retry := func(s email.Sender) email.Sender {
		return &email.Retrying{Sender: s, Attempts: cfg.RetryAttempts}
	}

	switch cfg.MailProvider {
	case "smtp":
		sender := retry(&email.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Log:      logger,
		})
		return func(context.Context) (email.Sender, error) { return sender, nil }

	case "resend":
		sender := retry(email.NewResendSender(cfg.ResendAPIKey, cfg.ResendFrom, cfg.SenderName, logger))
		return func(context.Context) (email.Sender, error) { return sender, nil }

	default:
		return func(ctx context.Context) (email.Sender, error) {
			if gmailAuth == nil {
				return nil, auth.ErrNotConfigured
			}
			ts, err := gmailAuth.TokenSource(ctx)
			if err != nil {
				return nil, err
			}
			// the sender outlives the request that created it
			sender, err := email.NewGmailSender(context.WithoutCancel(ctx), ts, cfg.SenderName, logger)
			if err != nil {
				return nil, err
			}
			return retry(sender), nil
		}
	}
}
