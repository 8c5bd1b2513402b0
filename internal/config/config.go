package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 在庫台帳の保存先
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"
)

// バッグの保存先
const (
	BagRedis  = "redis"
	BagMemory = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // development/production

	ClientOrigin     string   // 決済後の戻り先（success/cancel）
	CORSOrigins      []string // 許可するオリジン
	ProductsJSONPath string   // 静的カタログ

	LedgerBackend string
	BagBackend    string

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StripeSecretKey     string
	StripeWebhookSecret string

	BagTokenSecret string        // バッグトークン署名シークレット
	BagTokenTTL    time.Duration // バッグトークンの有効期限
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.GoEnv, "production")
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "development"),

		ClientOrigin:     strings.TrimRight(getenv("CLIENT_ORIGIN", "http://localhost:5173"), "/"),
		CORSOrigins:      splitList(os.Getenv("CORS_ORIGINS")),
		ProductsJSONPath: getenv("PRODUCTS_JSON_PATH", "products.json"),

		LedgerBackend: strings.ToLower(getenv("LEDGER_BACKEND", LedgerPostgres)),
		BagBackend:    strings.ToLower(getenv("BAG_BACKEND", BagRedis)),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		BagTokenSecret: os.Getenv("BAG_TOKEN_SECRET"),
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.ClientOrigin}
	}

	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB = redisDB

	ttlHours, err := atoiDefault("BAG_TOKEN_TTL_HOURS", 24*30)
	if err != nil {
		return Config{}, err
	}
	if ttlHours <= 0 {
		return Config{}, fmt.Errorf("BAG_TOKEN_TTL_HOURS must be positive")
	}
	cfg.BagTokenTTL = time.Duration(ttlHours) * time.Hour

	//必須チェック
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.BagTokenSecret == "" {
		return Config{}, fmt.Errorf("BAG_TOKEN_SECRET is required")
	}
	if cfg.IsProduction() && cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	switch cfg.LedgerBackend {
	case LedgerPostgres:
		if cfg.DatabaseURL == "" {
			if err := cfg.requirePostgres(); err != nil {
				return Config{}, err
			}
		}
	case LedgerRedis, LedgerMemory:
	default:
		return Config{}, fmt.Errorf("LEDGER_BACKEND must be one of postgres, redis, memory")
	}

	switch cfg.BagBackend {
	case BagRedis, BagMemory:
	default:
		return Config{}, fmt.Errorf("BAG_BACKEND must be one of redis, memory")
	}

	if (cfg.LedgerBackend == LedgerRedis || cfg.BagBackend == BagRedis) && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required")
	}

	return cfg, nil
}

func (c *Config) requirePostgres() error {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return err
	}
	c.PostgresPort = pgPort

	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	return nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiDefault(key string, def int) (int, error) {
	if os.Getenv(key) == "" {
		return def, nil
	}
	return mustAtoi(key)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}
