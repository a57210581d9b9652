package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/Khaos-s/car-pass/internal/adapter/cache"
	"github.com/Khaos-s/car-pass/internal/bootstrap"
	"github.com/Khaos-s/car-pass/internal/config"
	httptransport "github.com/Khaos-s/car-pass/internal/http"
	"github.com/Khaos-s/car-pass/internal/http/handler"
	httpmiddleware "github.com/Khaos-s/car-pass/internal/http/middleware"
	"github.com/Khaos-s/car-pass/internal/jwt"
	"github.com/Khaos-s/car-pass/internal/mail"
	apimiddleware "github.com/Khaos-s/car-pass/internal/middleware"
	"github.com/Khaos-s/car-pass/internal/repository"
	"github.com/Khaos-s/car-pass/internal/server"
	"github.com/Khaos-s/car-pass/internal/service"
	"github.com/Khaos-s/car-pass/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newAccountRepository,
			newRedisClient,
			newCooldownStore,
			newMailSender,
			newJWTGenerator,
			service.NewAuthService,
			handler.NewAuthHandler,
			newAuthMiddleware,
			newRateLimiter,
			newHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repository.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newAccountRepository(pool *pgxpool.Pool) repository.AccountRepository {
	return repository.NewPostgresAccountRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCooldownStore(client redis.UniversalClient, cfg config.Config) repository.CooldownStore {
	return cacheadapter.NewRedisCooldown(client, cfg.ResendCooldown)
}

func newMailSender(cfg config.Config, logger *zap.Logger) mail.Sender {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, verification emails are logged only")
		return mail.NewLogSender(logger)
	}
	return mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
}

func newJWTGenerator(cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.ServiceName)
}

func newAuthMiddleware(generator *jwt.Generator) *httpmiddleware.Auth {
	return httpmiddleware.NewAuth(generator)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newHTTPServer(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *apimiddleware.RateLimiter, logger *zap.Logger) *server.HTTPServer {
	return server.NewHTTPServer(httptransport.NewRouter(cfg, authHandler, authMiddleware, rateLimiter), logger)
}

func useTelemetry(provider *telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, shutdowner fx.Shutdowner, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Run(ctx, ":"+cfg.HTTPPort); err != nil {
					logger.Error("http server exited", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
