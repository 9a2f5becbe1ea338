package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streampass/streampass-backend/api/controllers"
	webhookcontrollers "github.com/streampass/streampass-backend/api/controllers/webhooks"
	"github.com/streampass/streampass-backend/api/middleware"
	checkoutsvc "github.com/streampass/streampass-backend/internal/checkout"
	couponsvc "github.com/streampass/streampass-backend/internal/coupons"
	entitlementsvc "github.com/streampass/streampass-backend/internal/entitlements"
	gamesvc "github.com/streampass/streampass-backend/internal/games"
	ledgersvc "github.com/streampass/streampass-backend/internal/ledger"
	playbacksvc "github.com/streampass/streampass-backend/internal/playback"
	purchasesvc "github.com/streampass/streampass-backend/internal/purchases"
	squarewebhook "github.com/streampass/streampass-backend/internal/webhooks/square"
	"github.com/streampass/streampass-backend/pkg/bigquery"
	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/redis"
	"github.com/streampass/streampass-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	bigqueryClient bigquery.Pinger,
	gameService gamesvc.Service,
	checkoutService checkoutsvc.Service,
	purchaseService purchasesvc.Service,
	couponService couponsvc.Service,
	entitlementService entitlementsvc.Service,
	playbackService playbacksvc.Service,
	ledgerService ledgersvc.Service,
	squareClient *square.Client,
	squareWebhookService *squarewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger redis.Pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		redisPinger = redisClient
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger, bigqueryClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(squareWebhookService, squareClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Token-authenticated player surface. The entitlement token is
		// the credential, so no identity header is required here.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Post("/entitlements/validate", controllers.EntitlementValidate(entitlementService, logg))
			r.Post("/playback/sessions", controllers.PlaybackStart(playbackService, logg))
			r.Post("/playback/sessions/{sessionId}/end", controllers.PlaybackEnd(playbackService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ViewerContext(logg))
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Get("/ping", controllers.PrivatePing())
			r.Get("/games/{gameId}", controllers.GameGet(gameService, logg))
			r.Post("/checkout", controllers.CheckoutStart(checkoutService, logg))
			r.Post("/checkout/{purchaseId}/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			r.Get("/purchases/{purchaseId}", controllers.PurchaseDetail(purchaseService, logg))
			r.Post("/coupons/validate", controllers.CouponValidate(couponService, gameService, logg))
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(middleware.OwnerContext(logg))
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Post("/games", controllers.GameCreate(gameService, logg))
			r.Get("/games", controllers.GameList(gameService, logg))
			r.Post("/coupons", controllers.CouponCreate(couponService, logg))
			r.Get("/balance", controllers.OwnerBalance(ledgerService, logg))
			r.Get("/purchases/{purchaseId}/ledger", controllers.PurchaseLedger(purchaseService, ledgerService, logg))
		})
	})

	return r
}
