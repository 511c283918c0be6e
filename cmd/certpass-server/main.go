package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/certpass/internal/api/http"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/db"
	"github.com/EternisAI/certpass/internal/db/repository"
	"github.com/EternisAI/certpass/internal/metrics"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/EternisAI/certpass/internal/users"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("CertPass Server", "version", AppVersion)

	ctx := context.Background()

	pool, err := db.InitDB(ctx, config.DB)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB := db.SQL(pool)
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, config.DB.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	limiterStore, closeStore := rateLimitStore(ctx, repository.NewRateLimitRepository(sqlDB))
	defer closeStore()

	services, err := buildServices(ctx, sqlDB, limiterStore)
	if err != nil {
		slog.Error("Failed to initialise services", "error", err)
		os.Exit(1)
	}

	metrics.Register()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Signature", "X-Timestamp", "X-Nonce", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services, config.Http)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Http.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// rateLimitStore returns the Redis store when configured and reachable,
// otherwise the PostgreSQL table.
func rateLimitStore(ctx context.Context, fallback ratelimit.Store) (ratelimit.Store, func()) {
	if !config.Redis.Enabled {
		return fallback, func() {}
	}

	client := ratelimit.NewRedisClient(config.Redis.RedisConfig)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis unavailable, using PostgreSQL for rate limiting", "addr", config.Redis.Addr, "error", err)
		_ = client.Close()
		return fallback, func() {}
	}

	slog.Info("Using Redis for rate limiting", "addr", config.Redis.Addr)
	store := ratelimit.NewRedisStore(client, config.Redis.KeyPrefix, config.Redis.Retention)
	return store, func() { _ = client.Close() }
}

func buildServices(ctx context.Context, sqlDB *sql.DB, limiterStore ratelimit.Store) (*internalhttp.Services, error) {
	certRepo := repository.NewCertificateRepository(sqlDB)
	eventRepo := repository.NewEventRepository(sqlDB)

	signer := certificate.NewSigner([]byte(config.Security.SigningKey))
	var check certificate.SignatureCheck
	if config.Security.SignatureCheck {
		check = signer.Verify
	}

	limiter := ratelimit.NewLimiter(limiterStore,
		ratelimit.WithPurgeProbability(config.Security.PurgeProbability),
		ratelimit.WithTimeout(config.Verification.StoreTimeout),
	)

	userService := users.NewService(repository.NewUserRepository(sqlDB))
	if err := userService.EnsureAdmin(ctx, config.Admin.Username, config.Admin.Password); err != nil {
		return nil, fmt.Errorf("ensure admin account: %w", err)
	}

	return &internalhttp.Services{
		Verification: verification.NewOrchestrator(certRepo, eventRepo, limiter, check,
			[]byte(config.Security.RateLimitSalt), config.Verification),
		Certificates: certificate.NewService(certRepo, signer, certificate.Config{
			IDPrefix: config.Certificate.IDPrefix,
			BaseURL:  config.Http.BaseURL,
		}),
		Credentials: apiauth.NewService(repository.NewCredentialRepository(sqlDB)),
		Signatures: apiauth.NewVerifier(repository.NewNonceRepository(sqlDB),
			apiauth.WithMaxSkew(config.Api.MaxSkew),
			apiauth.WithStoreTimeout(config.Api.StoreTimeout),
		),
		Limiter:     limiter,
		RequestLogs: repository.NewRequestLogRepository(sqlDB),
		Events:      eventRepo,
		Auth:        auth.NewService(userService, config.Security.JWT),
		JWTSecret:   config.Security.JWT.Secret,
	}, nil
}
