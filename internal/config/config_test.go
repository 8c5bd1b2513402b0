package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "GO_ENV", "CLIENT_ORIGIN", "CORS_ORIGINS", "PRODUCTS_JSON_PATH",
		"LEDGER_BACKEND", "BAG_BACKEND", "DATABASE_URL",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_SSLMODE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "BAG_TOKEN_SECRET", "BAG_TOKEN_TTL_HOURS",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("BAG_TOKEN_SECRET", "bag-secret")
}

func TestLoad_MemoryBackends(t *testing.T) {
	setBase(t)
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("BAG_BACKEND", "memory")
	t.Setenv("CLIENT_ORIGIN", "https://shop.example/")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://shop.example", cfg.ClientOrigin)
	assert.Equal(t, []string{"https://shop.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*24*time.Hour, cfg.BagTokenTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_PostgresRequiresConnectionSettings(t *testing.T) {
	setBase(t)
	t.Setenv("BAG_BACKEND", "memory")

	_, err := Load()
	assert.EqualError(t, err, "POSTGRES_PORT is required")

	t.Setenv("POSTGRES_PORT", "abc")
	_, err = Load()
	assert.ErrorContains(t, err, "POSTGRES_PORT must be number")

	t.Setenv("POSTGRES_PORT", "5433")
	_, err = Load()
	assert.EqualError(t, err, "POSTGRES_USER is required")

	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/app")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerPostgres, cfg.LedgerBackend)
}

func TestLoad_RedisRequiresAddr(t *testing.T) {
	setBase(t)
	t.Setenv("LEDGER_BACKEND", "redis")

	_, err := Load()
	assert.EqualError(t, err, "REDIS_ADDR is required")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"no stripe key", map[string]string{"STRIPE_SECRET_KEY": ""}, "STRIPE_SECRET_KEY is required"},
		{"no bag secret", map[string]string{"BAG_TOKEN_SECRET": ""}, "BAG_TOKEN_SECRET is required"},
		{"production webhook", map[string]string{"GO_ENV": "production"}, "STRIPE_WEBHOOK_SECRET is required"},
		{"ledger backend", map[string]string{"LEDGER_BACKEND": "s3"}, "LEDGER_BACKEND must be one of postgres, redis, memory"},
		{"bag backend", map[string]string{"BAG_BACKEND": "cookie"}, "BAG_BACKEND must be one of redis, memory"},
		{"ttl", map[string]string{"BAG_TOKEN_TTL_HOURS": "0"}, "BAG_TOKEN_TTL_HOURS must be positive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setBase(t)
			t.Setenv("LEDGER_BACKEND", "memory")
			t.Setenv("BAG_BACKEND", "memory")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.EqualError(t, err, tc.want)
		})
	}
}
