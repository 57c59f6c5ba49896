package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-payments/internal/audit"
	"marketplace-payments/internal/auth"
	"marketplace-payments/internal/config"
	"marketplace-payments/internal/events"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/httpapi"
	"marketplace-payments/internal/idempotency"
	"marketplace-payments/internal/metrics"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/payout"
	"marketplace-payments/internal/refund"
	"marketplace-payments/internal/reporting"
	"marketplace-payments/internal/wallet"
	"marketplace-payments/internal/webhook"
	"marketplace-payments/pkg/logger"
	"marketplace-payments/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	idem, err := idempotency.NewRedisStore(rdb)
	if err != nil {
		log.Error("idempotency init failed", "err", err)
		os.Exit(1)
	}

	gw, err := gateway.NewStripeClient(gateway.StripeConfig{
		BaseURL:       cfg.Stripe.BaseURL,
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		log.Error("gateway init failed", "err", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka init failed", "err", err)
			os.Exit(1)
		}
		publisher = kp
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("event publisher close failed", "err", err)
		}
	}()

	// The order service owns the order lifecycle; this process co-owns only the
	// financial fields. The in-memory store is the integration point until the
	// order service client lands.
	orders := order.NewMemoryStore()

	walletSvc := wallet.NewService(wallet.NewPostgresStore(db))
	topupSvc := wallet.NewTopupService(walletSvc, gw, idem)
	paymentSvc := payment.NewService(payment.NewPostgresRepo(db), orders, walletSvc, gw, idem)
	refundRouter := refund.NewRouter(orders, paymentSvc, walletSvc, gw, loggingStock{log: log})
	payoutSvc := payout.NewService(payout.NewPostgresRepo(db), orders, walletSvc)
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	reconciler := webhook.NewReconciler(paymentSvc, topupSvc)
	webhookHandler := webhook.NewHandler(gw, reconciler, m)

	handlers := httpapi.Handlers{
		Auth:     authManager,
		Orders:   orders,
		Payments: paymentSvc,
		Refunds:  refundRouter,
		Payouts:  payoutSvc,
		Wallet:   walletSvc,
		Topups:   topupSvc,
		Reports:  reportSvc,
		Audit:    auditSvc,
		Events:   publisher,
		Metrics:  m,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, webhookHandler, auth.RequireAccessToken(authManager), reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// loggingStock records stock restorations until the product service client is
// wired in. Refunds must not fail on the stock side either way.
type loggingStock struct {
	log *slog.Logger
}

func (s loggingStock) AdjustStock(ctx context.Context, productID, variantID string, quantity int, op refund.StockOp) error {
	s.log.Info("stock adjustment requested",
		"product_id", productID,
		"variant_id", variantID,
		"quantity", quantity,
		"op", string(op),
	)
	return nil
}
