package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/shutdown"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	//.envは無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.GoEnv)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	m := metrics.New()

	//静的カタログ
	catalog, err := infraRepo.NewJSONCatalogRepository(cfg.ProductsJSONPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	//redis（台帳かバッグのどちらかで使うときだけ）
	var rdb *redis.Client
	if cfg.LedgerBackend == config.LedgerRedis || cfg.BagBackend == config.BagRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	memKV := infraRepo.NewMemoryKVStore()

	//在庫台帳と確定済みセッション
	var (
		ledger    repo.InventoryLedgerRepository
		confirmed repo.ConfirmedSessionRepository
	)
	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := db.Migrate(gormDB); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		ledger = infraRepo.NewLedgerGormRepository(gormDB)
		confirmed = infraRepo.NewConfirmedSessionGormRepository(gormDB)
	case config.LedgerRedis:
		kv := infraRepo.NewRedisKVStore(rdb)
		ledger = infraRepo.NewLedgerKVRepository(kv)
		confirmed = infraRepo.NewConfirmedSessionKVRepository(kv)
	default:
		log.Warn("using in-memory ledger; sold state is lost on restart")
		ledger = infraRepo.NewLedgerKVRepository(memKV)
		confirmed = infraRepo.NewConfirmedSessionKVRepository(memKV)
	}

	//バッグの保存先
	var bagKV repo.KVStore = memKV
	if cfg.BagBackend == config.BagRedis {
		bagKV = infraRepo.NewRedisKVStore(rdb)
	}

	//決済サービス
	stripeSvc := payment.NewStripeService(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        log,
	})

	//Usecase生成
	availabilityUC := usecase.NewAvailabilityUsecase(catalog, ledger, log)
	confirmUC := usecase.NewConfirmSessionUsecase(stripeSvc, ledger, confirmed, m, log)
	checkoutUC := usecase.NewCheckoutSessionUsecase(stripeSvc, availabilityUC, cfg.ClientOrigin, m, log)
	initiator := checkout.NewInitiator(checkoutUC, availabilityUC, log)

	issuer := middleware.NewBagTokenIssuer(cfg.BagTokenSecret, cfg.BagTokenTTL)

	//Handler生成
	h := server.Handlers{
		Bag:       handler.NewBagHandler(bagKV, availabilityUC, initiator, issuer, log),
		Product:   handler.NewProductHandler(availabilityUC),
		Inventory: handler.NewInventoryHandler(availabilityUC, confirmUC),
		Checkout:  handler.NewCheckoutHandler(checkoutUC),
		Webhook:   handler.NewWebhookHandler(stripeSvc, confirmUC, log),
		Health:    handler.NewHealthHandler(m),
	}

	e := server.New(cfg, log, m, h)

	log.Info("storefront configured",
		"env", cfg.GoEnv,
		"ledger_backend", cfg.LedgerBackend,
		"bag_backend", cfg.BagBackend,
		"products", cfg.ProductsJSONPath,
		"catalog_items", catalog.Len(),
	)

	return server.Run(ctx, e, listenAddr(cfg.Port), log)
}

func listenAddr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] != ':' {
		return ":" + port
	}
	return port
}
