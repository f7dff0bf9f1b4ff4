// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/commission"
	"github.com/vendora/marketplace-core/internal/domain/event"
	"github.com/vendora/marketplace-core/internal/domain/order"
	"github.com/vendora/marketplace-core/internal/domain/payout"
	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
	"github.com/vendora/marketplace-core/internal/handler"
	"github.com/vendora/marketplace-core/internal/kafka"
	"github.com/vendora/marketplace-core/internal/storage/postgres"
	"github.com/vendora/marketplace-core/pkg/health"
	"github.com/vendora/marketplace-core/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the reservation
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	taxRate, err := decimal.NewFromString(cfg.Cart.TaxRatePercent)
	if err != nil {
		return errors.Wrap(err, "parse tax rate")
	}
	commissionRate, err := decimal.NewFromString(cfg.Commission.RatePercent)
	if err != nil {
		return errors.Wrap(err, "parse commission rate")
	}
	payoutFee, err := decimal.NewFromString(cfg.Payout.ProcessingFeePercent)
	if err != nil {
		return errors.Wrap(err, "parse payout fee")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Event publisher: Kafka when brokers are configured, log otherwise.
	var events event.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, "marketplace-core", lg)
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Error("close kafka publisher", zap.Error(err))
			}
		}()
		events = pub
	} else {
		lg.Info("No Kafka brokers configured, logging events instead")
		events = kafka.NewLogPublisher(lg)
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if len(cfg.Kafka.Brokers) > 0 {
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.KafkaCheck(cfg.Kafka.Brokers[0]))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	inventoryRepo := postgres.NewInventoryRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	commissionRepo := postgres.NewCommissionRepository(pool)
	payoutRepo := postgres.NewPayoutRepository(pool)
	reconciliationRepo := postgres.NewReconciliationRepository(pool)

	// Domain services.
	cartService := cart.NewService(cartRepo, inventoryRepo, cart.Config{
		TaxRatePercent: taxRate,
		ReservationTTL: cfg.Cart.ReservationTTL,
	})

	feeTiers := make([]order.CodFeeTier, len(cfg.Checkout.CodFeeTiers))
	for i, t := range cfg.Checkout.CodFeeTiers {
		feeTiers[i] = order.CodFeeTier{UpToCents: t.UpToCents, FeeCents: t.FeeCents}
	}
	checkoutService := order.NewCheckout(cartRepo, orderRepo, events, order.CheckoutConfig{
		TaxRatePercent: taxRate,
		ShippingCents:  cfg.Checkout.ShippingCents,
		CodMinCents:    cfg.Checkout.CodMinCents,
		CodMaxCents:    cfg.Checkout.CodMaxCents,
		CodFeeTiers:    feeTiers,
	})

	commissionEngine := commission.NewEngine(commissionRepo, commissionRate)
	codWorkflow := order.NewCodWorkflow(orderRepo, events, commissionEngine, order.CodConfig{
		EscalationThreshold: cfg.Cod.EscalationThreshold,
	})
	itemService := order.NewItems(orderRepo)

	payoutService := payout.NewService(payoutRepo, commissionRepo, events, payout.Config{
		ProcessingFeePercent: payoutFee,
		MinFeeCents:          cfg.Payout.MinFeeCents,
	})
	reconciliationService := reconciliation.NewService(orderRepo, reconciliationRepo)

	// Background sweep of expired stock reservations.
	go sweepReservations(ctx, lg, inventoryRepo, cfg.Cart.SweepInterval)

	// HTTP handlers.
	h := handler.NewHandler(
		cartService,
		checkoutService,
		codWorkflow,
		itemService,
		orderRepo,
		payoutService,
		reconciliationService,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-User-Id", "X-Actor-Id"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("marketplace-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// sweepReservations periodically deletes expired stock reservations so
// abandoned carts release their holds.
func sweepReservations(ctx context.Context, lg *zap.Logger, repo *postgres.InventoryRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.SweepExpired(ctx)
			if err != nil {
				lg.Error("sweep expired reservations", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("swept expired reservations", zap.Int("count", n))
			}
		}
	}
}
