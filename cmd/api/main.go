package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streampass/streampass-backend/api/routes"
	"github.com/streampass/streampass-backend/internal/checkout"
	"github.com/streampass/streampass-backend/internal/coupons"
	"github.com/streampass/streampass-backend/internal/entitlements"
	"github.com/streampass/streampass-backend/internal/games"
	"github.com/streampass/streampass-backend/internal/ledger"
	"github.com/streampass/streampass-backend/internal/playback"
	"github.com/streampass/streampass-backend/internal/purchases"
	"github.com/streampass/streampass-backend/internal/settlement"
	squarewebhook "github.com/streampass/streampass-backend/internal/webhooks/square"
	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/metrics"
	"github.com/streampass/streampass-backend/pkg/migrate"
	"github.com/streampass/streampass-backend/pkg/outbox"
	"github.com/streampass/streampass-backend/pkg/redis"
	"github.com/streampass/streampass-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	gameRepo := games.NewRepository(dbClient.DB())
	purchaseRepo := purchases.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	gameService, err := games.NewService(gameRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create game service", err)
		os.Exit(1)
	}
	purchaseService, err := purchases.NewService(purchaseRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}
	couponService, err := coupons.NewService(coupons.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	entitlementService, err := entitlements.NewService(entitlements.NewRepository(dbClient.DB()), cfg.Entitlement)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}
	playbackService, err := playback.NewService(playback.ServiceParams{
		Repo:         playback.NewRepository(dbClient.DB()),
		Entitlements: entitlementService,
		Outbox:       outboxService,
		Tx:           dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create playback service", err)
		os.Exit(1)
	}
	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Purchases:    purchaseService,
		Ledger:       ledgerService,
		Entitlements: entitlementService,
		Games:        gameRepo,
		Outbox:       outboxService,
		Tx:           dbClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Config:       cfg.Checkout,
		Tx:           dbClient,
		Games:        gameRepo,
		PurchaseRepo: purchaseRepo,
		Coupons:      couponService,
		Gateway:      squareClient,
		Settlement:   settlementService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Settlement: settlementService,
		Purchases:  purchaseService,
		Guard:      webhookGuard,
		Logger:     logg,
		Metrics:    metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			nil,
			gameService,
			checkoutService,
			purchaseService,
			couponService,
			entitlementService,
			playbackService,
			ledgerService,
			squareClient,
			webhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
