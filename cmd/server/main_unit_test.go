package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"coin-ledger.backend/internal/config"
	"coin-ledger.backend/internal/infrastructure/realtime"
	plog "coin-ledger.backend/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origNewRedisClient := newRedisClient
	origOpenDB := openDB
	origMigrate := migrate
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		newRedisClient = origNewRedisClient
		openDB = origOpenDB
		migrate = origMigrate
		runServer = origRunServer
	})

	loadDotenv = func(...string) error { return errors.New("no .env") }
	initLog = plog.Init
}

func baseTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port: "18080",
			Env:  "development",
		},
		Database: config.DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			User:        "postgres",
			Password:    "postgres",
			DBName:      "coinledger",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		Redis: config.RedisConfig{
			URL: "redis://localhost:6379",
		},
		Kafka: config.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "ledger-events",
		},
		JWT: config.JWTConfig{
			Secret:       "secret",
			AccessExpiry: 15 * time.Minute,
		},
		Ledger: config.LedgerConfig{
			IdempotencyBackend:       "memory",
			IdempotencyTTL:           time.Minute,
			IdempotencySweepInterval: time.Minute,
			HoldTTL:                  15 * time.Minute,
			HoldSweepInterval:        time.Minute,
			SideEffectTimeout:        time.Second,
			RealtimeDriver:           "none",
		},
	}
}

func sqliteOpener(_ *testing.T) func(config.DatabaseConfig) (*gorm.DB, error) {
	return func(config.DatabaseConfig) (*gorm.DB, error) {
		dsn := fmt.Sprintf("file:main_%d?mode=memory&cache=shared", time.Now().UnixNano())
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	}
}

func TestRunMainProcess_DBOpenError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	openDB = func(config.DatabaseConfig) (*gorm.DB, error) { return nil, errors.New("db open failed") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestRunMainProcess_MigrateError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	openDB = sqliteOpener(t)
	migrate = func(*gorm.DB) error { return errors.New("bad schema") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to migrate database")
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Ledger.IdempotencyBackend = "redis"
		return cfg
	}
	openDB = sqliteOpener(t)
	newRedisClient = func(string, string) (*goredis.Client, error) { return nil, errors.New("redis down") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize redis")
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	openDB = sqliteOpener(t)

	var routes []gin.RouteInfo
	runServer = func(r *gin.Engine, port string) error {
		routes = r.Routes()
		assert.Equal(t, "18080", port)
		return errors.New("listen failed")
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")

	paths := map[string]bool{}
	for _, rt := range routes {
		paths[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/transfers",
		"POST /api/v1/assets/:id/purchase",
		"POST /api/v1/holds",
		"POST /api/v1/holds/:id/capture",
		"POST /api/v1/holds/:id/release",
		"GET /api/v1/wallet",
		"GET /api/v1/wallet/entries",
		"GET /api/v1/transactions/:id",
		"POST /api/v1/goals",
		"GET /api/v1/goals",
		"POST /api/v1/admin/system-entries",
		"POST /api/v1/admin/entries/:id/reverse",
		"GET /api/v1/admin/wallets/:userId/verify",
	} {
		assert.True(t, paths[want], "route %s is registered", want)
	}
}

func TestRunMainProcess_RedisBackends(t *testing.T) {
	withMainHooks(t)
	mr := miniredis.RunT(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Redis.URL = "redis://" + mr.Addr()
		cfg.Ledger.IdempotencyBackend = "redis"
		cfg.Ledger.RealtimeDriver = "redis"
		return cfg
	}
	openDB = sqliteOpener(t)
	runServer = func(*gin.Engine, string) error { return nil }

	require.NoError(t, runMainProcess())
}

func TestNewPublisher(t *testing.T) {
	cfg := baseTestConfig()

	p, closeFn := newPublisher(cfg, nil)
	assert.IsType(t, realtime.NopPublisher{}, p)
	closeFn()

	cfg.Ledger.RealtimeDriver = "redis"
	p, _ = newPublisher(cfg, nil)
	assert.IsType(t, realtime.NopPublisher{}, p, "redis driver without a client falls back to no-op")

	cfg.Ledger.RealtimeDriver = "kafka"
	p, closeFn = newPublisher(cfg, nil)
	assert.NotEqual(t, realtime.NopPublisher{}, p)
	closeFn()
}

func TestNewIdempotencyStore(t *testing.T) {
	cfg := baseTestConfig().Ledger

	store, mem := newIdempotencyStore(cfg, nil)
	require.NotNil(t, mem)
	assert.Same(t, mem, store)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	cfg.IdempotencyBackend = "redis"
	store, mem = newIdempotencyStore(cfg, client)
	assert.Nil(t, mem)
	assert.NotNil(t, store)
}
