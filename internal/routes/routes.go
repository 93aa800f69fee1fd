// Package routes builds the dependency graph and mounts every endpoint.
package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tomasdev42/crypto-portfolio/internal/auth"
	"github.com/tomasdev42/crypto-portfolio/internal/config"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
	"github.com/tomasdev42/crypto-portfolio/internal/market"
	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
	"github.com/tomasdev42/crypto-portfolio/internal/middleware"
	"github.com/tomasdev42/crypto-portfolio/internal/notification"
	"github.com/tomasdev42/crypto-portfolio/internal/portfolio"
	"github.com/tomasdev42/crypto-portfolio/internal/profile"
	"github.com/tomasdev42/crypto-portfolio/internal/realtime"
	"github.com/tomasdev42/crypto-portfolio/internal/storage"
)

// Deps aggregates shared dependencies required to wire routes. Market,
// Notifier and Store are built from Cfg when nil.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Metrics  *metrics.Collectors
	Market   market.Provider
	Notifier notification.Notifier
	Store    storage.BlobStore
}

// App exposes the services the server manages beyond request handling.
type App struct {
	Users     identity.Repository
	Portfolio *portfolio.Service
	Tokens    *auth.TokenService
	Hub       *realtime.Hub
	// Broker is nil when redis is not configured.
	Broker *realtime.RedisBroker
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*App, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger, healthPath, metricsPath))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     d.Cfg.OriginURL,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// Services
	var users identity.Repository
	var holdings portfolio.Repository
	if d.DB != nil {
		users = identity.NewPostgresRepository(d.DB)
		holdings = portfolio.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory repositories")
		users = identity.NewMemoryRepository()
		holdings = portfolio.NewMemoryRepository()
	}

	provider := d.Market
	if provider == nil {
		provider = market.NewCoinGecko(d.Cfg.Market, d.Metrics)
	}
	if d.Cache != nil {
		provider = market.NewCachedProvider(provider, d.Cache, d.Cfg.Market.CacheTTL, d.Logger)
	}

	notifier := d.Notifier
	if notifier == nil {
		if d.Cfg.SMTP.Host != "" {
			notifier = notification.NewSMTPNotifier(d.Cfg.SMTP)
		} else {
			notifier = notification.NewLoggerNotifier(d.Logger)
		}
	}

	store := d.Store
	if store == nil {
		var err error
		store, err = storage.New(context.Background(), d.Cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	hub := realtime.NewHub(d.Logger)
	var publisher portfolio.Publisher = hub
	var broker *realtime.RedisBroker
	if d.Cache != nil {
		broker = realtime.NewRedisBroker(d.Cache, realtime.DefaultChannel, hub, d.Logger)
		publisher = broker
	}

	tokens := auth.NewTokenService(d.Cfg)
	authSvc := auth.NewService(users, tokens, notifier, d.Cfg.OriginURL, d.Logger)
	portfolioSvc := portfolio.NewService(holdings, users, provider, publisher, d.Metrics, d.Cfg.Market.FetchConcurrency, d.Logger)
	profileSvc := profile.NewService(users, store, d.Logger)

	// Routes
	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Metrics)
	if disk, ok := store.(*storage.DiskStore); ok {
		app.Static(storage.DiskURLPrefix, disk.Dir())
	}

	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger)
	RegisterAuthRoutes(app, auth.NewHandler(authSvc, d.Cfg.IsProduction()), rateLimiter)

	bearer := middleware.BearerAuth(tokens)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterPortfolioRoutes(app, portfolio.NewHandler(portfolioSvc), bearer, idempotent)
	RegisterDataRoutes(app, market.NewHandler(provider), bearer)
	RegisterUploadRoutes(app, profile.NewHandler(profileSvc), bearer)
	RegisterRealtimeRoutes(app, hub, tokens)

	return &App{
		Users:     users,
		Portfolio: portfolioSvc,
		Tokens:    tokens,
		Hub:       hub,
		Broker:    broker,
	}, nil
}
