package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coin-ledger.backend/internal/config"
	"coin-ledger.backend/internal/infrastructure/datasources/postgres"
	"coin-ledger.backend/internal/infrastructure/idempotency"
	"coin-ledger.backend/internal/infrastructure/jobs"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/internal/infrastructure/realtime"
	"coin-ledger.backend/internal/infrastructure/repositories"
	"coin-ledger.backend/internal/interfaces/http/handlers"
	"coin-ledger.backend/internal/usecases"
	"coin-ledger.backend/pkg/jwt"
	"coin-ledger.backend/pkg/logger"
	"coin-ledger.backend/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	loadDotenv     = godotenv.Load
	loadCfg        = config.Load
	initLog        = logger.Init
	newRedisClient = redis.NewClient
	openDB         = postgres.NewConnection
	migrate        = models.AutoMigrate
	runServer      = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB       = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()
	logger.Info(ctx, "Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info(ctx, "Database schema migrated")
	}

	var redisClient *goredis.Client
	if cfg.Ledger.IdempotencyBackend == "redis" || cfg.Ledger.RealtimeDriver == "redis" {
		redisClient, err = newRedisClient(cfg.Redis.URL, cfg.Redis.PASSWORD)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info(ctx, "Redis initialized")
	}

	store, memoryStore := newIdempotencyStore(cfg.Ledger, redisClient)
	publisher, closePublisher := newPublisher(cfg, redisClient)
	defer closePublisher()

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	// Repositories
	uow := repositories.NewUnitOfWork(db)
	userRepo := repositories.NewUserRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)
	assetRepo := repositories.NewAssetRepository(db)
	goalRepo := repositories.NewGoalRepository(db)
	supporterRepo := repositories.NewSupporterTotalRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Usecases
	dispatcher := usecases.NewSideEffectDispatcher(publisher, goalRepo, supporterRepo, notificationRepo, cfg.Ledger.SideEffectTimeout)
	engine := usecases.NewTransferEngine(uow, walletRepo, ledgerRepo, userRepo, assetRepo, dispatcher, cfg.Ledger.HoldTTL)
	walletUsecase := usecases.NewWalletUsecase(walletRepo, ledgerRepo, notificationRepo)
	goalUsecase := usecases.NewGoalUsecase(goalRepo, supporterRepo)

	guard := idempotency.NewGuard(store, idempotency.Options{
		TTL:     cfg.Ledger.IdempotencyTTL,
		LockTTL: cfg.Ledger.IdempotencyLockTTL,
		Wait:    cfg.Ledger.IdempotencyWait,
	})

	// Background jobs
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	holdExpiryJob := jobs.NewHoldExpiryJob(ledgerRepo, engine, cfg.Ledger.HoldSweepInterval, cfg.Ledger.HoldSweepBatch)
	go holdExpiryJob.Start(jobCtx)

	var sweepJob *jobs.IdempotencySweepJob
	if memoryStore != nil {
		sweepJob = jobs.NewIdempotencySweepJob(memoryStore, cfg.Ledger.IdempotencySweepInterval)
		go sweepJob.Start(jobCtx)
	}

	r := newRouter(healthChecks{db: sqlDB, redis: redisClient})
	registerAPIV1Routes(r, routeDeps{
		transferHandler: handlers.NewTransferHandler(engine),
		holdHandler:     handlers.NewHoldHandler(engine),
		walletHandler:   handlers.NewWalletHandler(walletUsecase),
		goalHandler:     handlers.NewGoalHandler(goalUsecase),
		adminHandler:    handlers.NewAdminHandler(engine),
		jwtService:      jwtService,
		guard:           guard,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")
		holdExpiryJob.Stop()
		if sweepJob != nil {
			sweepJob.Stop()
		}
		cancel()
	}()

	logger.Info(ctx, "Coin ledger starting",
		zap.String("port", cfg.Server.Port),
		zap.String("idempotency_backend", cfg.Ledger.IdempotencyBackend),
		zap.String("realtime_driver", cfg.Ledger.RealtimeDriver),
	)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// newIdempotencyStore returns the request cache backend. The memory store is
// also returned so its sweeper can be started.
func newIdempotencyStore(cfg config.LedgerConfig, client *goredis.Client) (idempotency.Store, *idempotency.MemoryStore) {
	if cfg.IdempotencyBackend == "redis" && client != nil {
		return idempotency.NewRedisStore(client), nil
	}
	mem := idempotency.NewMemoryStore()
	return mem, mem
}

func newPublisher(cfg *config.Config, client *goredis.Client) (realtime.Publisher, func()) {
	switch cfg.Ledger.RealtimeDriver {
	case "redis":
		if client != nil {
			return realtime.NewRedisPublisher(client), func() {}
		}
	case "kafka":
		p := realtime.NewKafkaPublisher(realtime.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn(context.Background(), "Failed to close kafka writer", zap.Error(err))
			}
		}
	}
	return realtime.NopPublisher{}, func() {}
}
