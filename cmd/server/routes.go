package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"coin-ledger.backend/internal/infrastructure/idempotency"
	"coin-ledger.backend/internal/interfaces/http/handlers"
	"coin-ledger.backend/internal/interfaces/http/middleware"
	"coin-ledger.backend/pkg/jwt"
	"coin-ledger.backend/pkg/metrics"
	"coin-ledger.backend/pkg/redis"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

const (
	serviceName    = "coin-ledger-backend"
	serviceVersion = "0.1.0"
	healthTimeout  = 2 * time.Second
)

type routeDeps struct {
	transferHandler *handlers.TransferHandler
	holdHandler     *handlers.HoldHandler
	walletHandler   *handlers.WalletHandler
	goalHandler     *handlers.GoalHandler
	adminHandler    *handlers.AdminHandler
	jwtService      *jwt.JWTService
	guard           *idempotency.Guard
}

type healthChecks struct {
	db    *sql.DB
	redis *goredis.Client
}

func newRouter(checks healthChecks) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r, checks)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Idempotency-Replayed, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine, checks healthChecks) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		database, cache := "ok", "ok"
		if checks.db != nil {
			if err := checks.db.PingContext(ctx); err != nil {
				database, status, code = "unavailable", "degraded", http.StatusServiceUnavailable
			}
		}
		if err := redis.Ping(ctx, checks.redis); err != nil {
			cache, status, code = "unavailable", "degraded", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"service":  serviceName,
			"version":  serviceVersion,
			"database": database,
			"redis":    cache,
		})
	})
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	auth := middleware.AuthMiddleware(d.jwtService)
	idem := middleware.IdempotencyMiddleware(d.guard)

	v1 := r.Group("/api/v1")
	v1.Use(auth)
	{
		// Money movement requires an Idempotency-Key
		v1.POST("/transfers", idem, d.transferHandler.CreateTransfer)
		v1.POST("/assets/:id/purchase", idem, d.transferHandler.Purchase)

		holds := v1.Group("/holds")
		{
			holds.POST("", idem, d.holdHandler.PlaceHold)
			holds.POST("/:id/capture", idem, d.holdHandler.CaptureHold)
			holds.POST("/:id/release", idem, d.holdHandler.ReleaseHold)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("", d.walletHandler.GetWallet)
			wallet.GET("/entries", d.walletHandler.ListEntries)
		}
		v1.GET("/transactions/:id", d.walletHandler.GetTransaction)
		v1.GET("/notifications", d.walletHandler.ListNotifications)

		goals := v1.Group("/goals")
		{
			goals.POST("", d.goalHandler.CreateGoal)
			goals.GET("", d.goalHandler.ListGoals)
		}
		v1.GET("/creators/:id/leaderboard", d.goalHandler.Leaderboard)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/system-entries", idem, d.adminHandler.RecordSystemEntry)
			admin.POST("/entries/:id/reverse", idem, d.adminHandler.ReverseEntry)
			admin.GET("/wallets/:userId/verify", d.adminHandler.VerifyWallet)
		}
	}
}
