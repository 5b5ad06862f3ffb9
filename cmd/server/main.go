package main // checkout API server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/pix-raffle-checkout/internal/catalog"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/config"
	"github.com/iliyamo/pix-raffle-checkout/internal/database"
	"github.com/iliyamo/pix-raffle-checkout/internal/gateway"
	"github.com/iliyamo/pix-raffle-checkout/internal/handler"
	"github.com/iliyamo/pix-raffle-checkout/internal/middleware"
	"github.com/iliyamo/pix-raffle-checkout/internal/queue"
	"github.com/iliyamo/pix-raffle-checkout/internal/repository"
	"github.com/iliyamo/pix-raffle-checkout/internal/router"
	queue_publisher "github.com/iliyamo/pix-raffle-checkout/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := catalog.New(cfg.CatalogBaseURL, cfg.CatalogAPIKey, cfg.CatalogPromotionID, cfg.UpstreamTimeout)
	gw := gateway.New(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.ChargeExpiry, cfg.UpstreamTimeout)

	// pending confirmations: Redis when reachable, a local Bolt file otherwise
	rdb := config.NewRedisClient()
	health := &handler.HealthHandler{Redis: rdb}
	var pending checkout.PendingStore
	if rdb != nil {
		defer rdb.Close()
		pending = repository.NewRedisPendingStore(rdb, "checkout", cfg.PendingGrace)
		health.Store = "redis"
	} else {
		log.Printf("redis unavailable; using bolt pending store at %s", cfg.BoltPath)
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
			log.Fatalf("bolt dir: %v", err)
		}
		bs, err := repository.OpenBoltPendingStore(cfg.BoltPath, cfg.PendingGrace)
		if err != nil {
			log.Fatalf("bolt open: %v", err)
		}
		defer bs.Close()
		go sweep(ctx, bs, time.Minute)
		pending = bs
		health.Store = "bolt"
	}

	deps := checkout.Deps{Catalog: cat, Attendance: cat, Gateway: gw, Pending: pending}

	var purchases *repository.PurchaseRepo
	if cfg.LedgerEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = database.Migrate(mctx, db)
		cancel()
		if err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		purchases = repository.NewPurchaseRepo(db)
		deps.Ledger = purchases
	} else {
		log.Printf("DB_USER not set; purchase ledger and reconciliation disabled")
	}

	if cfg.PublishEvents {
		deps.Events = queue_publisher.NewPublisher("")
	}
	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.StartPurchaseConsumer(); err != nil {
				log.Printf("purchase consumer stopped: %v", err)
			}
		}()
	}

	orc := checkout.New(deps, checkout.Options{ChargeExpiry: cfg.ChargeExpiry})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, health)
	router.RegisterCheckout(e, handler.NewCheckoutHandler(orc), limit)
	router.RegisterCatalog(e, handler.NewCatalogHandler(cat), cache, limit)
	router.RegisterWebhook(e, handler.NewWebhookHandler(orc), cfg.WebhookJWTSecret)
	if purchases != nil {
		router.RegisterAdmin(e, handler.NewAdminHandler(cfg, purchases, orc), cfg.JWTSecret)
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, health.Store)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// sweep removes expired Bolt entries until ctx ends.
func sweep(ctx context.Context, s *repository.BoltPendingStore, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("bolt sweep: %v", err)
			} else if n > 0 {
				log.Printf("bolt sweep: removed %d expired entries", n)
			}
		}
	}
}
