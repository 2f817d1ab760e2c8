package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juzeexs/lanches-bebidas/internal/cache"
	"github.com/juzeexs/lanches-bebidas/internal/cart"
	"github.com/juzeexs/lanches-bebidas/internal/catalog"
	"github.com/juzeexs/lanches-bebidas/internal/checkout"
	"github.com/juzeexs/lanches-bebidas/internal/config"
	h "github.com/juzeexs/lanches-bebidas/internal/http"
	"github.com/juzeexs/lanches-bebidas/internal/logger"
	"github.com/juzeexs/lanches-bebidas/internal/postal"
	"github.com/juzeexs/lanches-bebidas/internal/publisher"
	"github.com/juzeexs/lanches-bebidas/internal/qrcode"
	"github.com/juzeexs/lanches-bebidas/internal/repository"
	"github.com/juzeexs/lanches-bebidas/internal/search"
	"github.com/juzeexs/lanches-bebidas/internal/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.Init(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()

	// Catalog
	repo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		lg.Fatal("failed to open catalog", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		lg.Fatal("failed to run migrations", zap.Error(err))
	}

	dict, err := search.LoadDictionary(cfg.SearchDictionaryPath)
	if err != nil {
		lg.Fatal("failed to load search dictionary", zap.Error(err))
	}
	products := catalog.NewService(repo, search.NewScorer(dict), cfg.CatalogTTL, lg.Named("catalog"))

	// Cart persistence slot
	slot, closeSlot := cartSlot(ctx, cfg, lg)
	defer closeSlot()

	// Checkout collaborators
	qr, err := qrcode.NewURLRenderer(cfg.QRBaseURL)
	if err != nil {
		lg.Fatal("invalid QR base url", zap.Error(err))
	}

	deps := session.Deps{
		Persistence:   slot,
		Lookup:        postal.NewClient(cfg.PostalLookupURL, cfg.PostalTimeout, lg.Named("postal")),
		LookupTimeout: cfg.PostalTimeout,
		QRCodes:       qr,
		Delays: checkout.Delays{
			PixSettlement:  cfg.PixSettlementDelay,
			CardProcessing: cfg.CardProcessingDelay,
		},
		PixKey: cfg.PixKey,
		Logger: lg,
	}

	var receipts *publisher.ReceiptPublisher
	if len(cfg.KafkaBrokers) > 0 {
		receipts = publisher.NewReceiptPublisher(cfg.KafkaBrokers, cfg.ReceiptsTopic, lg)
		deps.Publisher = receipts
		lg.Info("publishing receipts to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.ReceiptsTopic))
	}

	sessions := session.NewManager(deps, cfg.SessionIdleTTL)

	limiter := h.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	router := h.NewRouter(h.RouterConfig{
		Sessions:       sessions,
		Catalog:        products,
		Logger:         lg,
		RateLimiter:    limiter,
		RequestTimeout: cfg.RequestTimeout,
		MaxRequestBody: cfg.MaxRequestBody,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("cart_store", cfg.CartStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		lg.Error("sessions did not stop in time", zap.Error(err))
	}
	// receipts are published asynchronously, so the writer goes last
	if receipts != nil {
		if err := receipts.Close(); err != nil {
			lg.Error("failed to close receipt publisher", zap.Error(err))
		}
	}

	lg.Info("server exited")
}

// cartSlot connects the configured cart store. A store that cannot be reached
// at startup is fatal; CART_STORE=none keeps carts in memory only.
func cartSlot(ctx context.Context, cfg *config.Config, lg *zap.Logger) (cart.Persistence, func()) {
	switch cfg.CartStore {
	case config.CartStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rc := cache.NewRedisCache(client)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			lg.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return rc, func() { client.Close() }

	case config.CartStoreMongo:
		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		db, err := repository.Connect(connCtx, repository.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDBName,
		})
		if err != nil {
			lg.Fatal("failed to connect to mongodb", zap.Error(err))
		}
		carts := repository.NewMongoRepository(db)
		if err := carts.CreateIndexes(connCtx); err != nil {
			lg.Fatal("failed to create cart indexes", zap.Error(err))
		}
		return carts, func() {
			if err := repository.Disconnect(context.Background(), db); err != nil {
				lg.Warn("failed to disconnect mongodb", zap.Error(err))
			}
		}

	default:
		return nil, func() {}
	}
}
