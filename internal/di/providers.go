package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/app"
	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/database"
	"github.com/quillcms/quill/internal/health"
	"github.com/quillcms/quill/internal/http/handler"
	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/router"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
	"github.com/quillcms/quill/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewPostRepository,
	repository.NewPageRepository,
	repository.NewCategoryRepository,
	repository.NewCommentRepository,
)

var SecuritySet = wire.NewSet(
	provideTokenManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	service.NewUserService,
	service.NewPostService,
	service.NewPageService,
	service.NewCategoryService,
	service.NewCommentService,
)

var HTTPSet = wire.NewSet(
	middleware.NewAuthenticator,
	handler.NewAuthHandler,
	handler.NewPostHandler,
	handler.NewPageHandler,
	handler.NewCategoryHandler,
	handler.NewCommentHandler,
	handler.NewUserHandler,
	providePublicHandler,
	provideAPIRateLimiter,
	providePublicRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

// APIRateLimiterFunc and PublicRateLimiterFunc give the two limiter
// middlewares distinct types so wire can tell them apart.
type APIRateLimiterFunc func(http.Handler) http.Handler

type PublicRateLimiterFunc func(http.Handler) http.Handler

// MigrationRunner applies schema migrations and seed data outside the
// server process.
type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() (*database.SeedReport, error) {
	if err := database.Migrate(m.db); err != nil {
		return nil, err
	}
	report, err := database.Seed(m.db, m.cfg)
	if err != nil {
		return nil, err
	}
	fmt.Println("migration complete")
	return report, nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if _, err := database.Seed(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideTokenManager(cfg *config.Config) *security.TokenManager {
	return security.NewTokenManager(cfg.SessionIssuer, cfg.SessionAudience, cfg.SessionSecret, cfg.SessionTTL)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func providePublicHandler(
	posts *service.PostServiceImpl,
	pages *service.PageServiceImpl,
	categories *service.CategoryServiceImpl,
	comments *service.CommentServiceImpl,
	cfg *config.Config,
) *handler.PublicHandler {
	return handler.NewPublicHandler(posts, pages, categories, comments, cfg.Site())
}

func provideAPIRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) APIRateLimiterFunc {
	if cfg.RedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisPrefix+":api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute, "api").Middleware()
}

func providePublicRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) PublicRateLimiterFunc {
	if cfg.RedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisPrefix+":public")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.PublicRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"public",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.PublicRateLimitPerMin, time.Minute, "public").Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	postHandler *handler.PostHandler,
	pageHandler *handler.PageHandler,
	categoryHandler *handler.CategoryHandler,
	commentHandler *handler.CommentHandler,
	userHandler *handler.UserHandler,
	publicHandler *handler.PublicHandler,
	apiLimiter APIRateLimiterFunc,
	publicLimiter PublicRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:        authHandler,
		PostHandler:        postHandler,
		PageHandler:        pageHandler,
		CategoryHandler:    categoryHandler,
		CommentHandler:     commentHandler,
		UserHandler:        userHandler,
		PublicHandler:      publicHandler,
		CORSOrigins:        cfg.CORSAllowedOrigins,
		APIRateLimitRPM:    cfg.APIRateLimitPerMin,
		PublicRateLimitRPM: cfg.PublicRateLimitPerMin,
		APIRateLimiter:     apiLimiter,
		PublicRateLimiter:  publicLimiter,
		Readiness:          readiness,
		EnableOTelHTTP:     cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}
