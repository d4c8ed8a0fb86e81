package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/admissions/internal/app/controllers"
	appMigrations "github.com/yigit/admissions/internal/app/migrations"
	appRepos "github.com/yigit/admissions/internal/app/repositories"
	appRoutes "github.com/yigit/admissions/internal/app/routes"
	appServices "github.com/yigit/admissions/internal/app/services"
	"github.com/yigit/admissions/internal/config"
	"github.com/yigit/admissions/internal/db"
	appMiddleware "github.com/yigit/admissions/internal/middleware"
	pkgAuth "github.com/yigit/admissions/internal/pkg/auth"
	"github.com/yigit/admissions/internal/pkg/events"
	"github.com/yigit/admissions/internal/pkg/logger"
	"github.com/yigit/admissions/internal/pkg/metrics"
	"github.com/yigit/admissions/internal/pkg/ratelimit"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	ApplicationService    appServices.ApplicationService
	AdmissionResolver     appServices.AdmissionResolver
	WaitingListService    appServices.WaitingListService
	JobService            appServices.JobService
	ApplicationController *appControllers.ApplicationController
	JobController         *appControllers.JobController
	AuthMiddleware        *appMiddleware.AuthMiddleware
	Repos                 *appRepos.Repositories
	JWTService            *pkgAuth.JWTService
	Bus                   EventBus.Bus
	Limiter               ratelimit.Limiter
	Redis                 *redis.Client
	Logger                zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	lgr := logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: strings.ToLower(cfg.Logging.Format) == "text",
	})

	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsDir := cfg.Database.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Str("path", migrationsDir).Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// SetupRateLimiter returns a Redis-backed limiter when Redis is enabled, otherwise an in-process one.
// The returned client is nil in the latter case.
func SetupRateLimiter(cfg *config.Config, lgr zerolog.Logger) (ratelimit.Limiter, *redis.Client) {
	window := cfg.RateLimitWindow()

	if !cfg.Redis.Enabled {
		lgr.Info().Int("requests", cfg.RateLimit.Requests).Dur("window", window).Msg("Using in-process rate limiter")
		return ratelimit.NewLocalLimiter(cfg.RateLimit.Requests, window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis only disables limiting
		lgr.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable at startup")
	}

	lgr.Info().Str("addr", cfg.Redis.Addr).Int("requests", cfg.RateLimit.Requests).Dur("window", window).Msg("Using Redis rate limiter")
	return ratelimit.NewRedisLimiter(client, cfg.RateLimit.Requests, window, logger.Component("ratelimit")), client
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database)

	deps.Bus = EventBus.New()
	if err := events.NewAuditSubscriber(lgr).Attach(deps.Bus); err != nil {
		return nil, fmt.Errorf("failed to attach event subscribers: %w", err)
	}
	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	deps.Limiter, deps.Redis = SetupRateLimiter(cfg, lgr)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.JWT.Secret,
		TokenIssuer: cfg.JWT.Issuer,
	})

	deps.ApplicationService = appServices.NewApplicationService(deps.Repos.Applications, deps.Bus, lgr)
	deps.AdmissionResolver = appServices.NewAdmissionResolver(deps.Repos.Applications, deps.Bus, lgr)
	deps.WaitingListService = appServices.NewWaitingListService(deps.Repos.Applications, deps.Bus, lgr)
	deps.JobService = appServices.NewJobService(
		deps.Repos.Jobs,
		deps.Repos.JobApplications,
		deps.Repos.Students,
		deps.Repos.Documents,
		deps.Repos.Applications,
		cfg.CandidatesTTL(),
		deps.Bus,
		lgr,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.ApplicationController = appControllers.NewApplicationController(
		deps.ApplicationService,
		deps.AdmissionResolver,
		deps.WaitingListService,
	)
	deps.JobController = appControllers.NewJobController(deps.JobService)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, database *db.PostgresDB, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		appMiddleware.RequestID(),
		appMiddleware.RequestLogger(logger.Component("http")),
	)
	if cfg.Metrics.Enabled {
		router.Use(appMiddleware.Metrics())
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	appRoutes.SetupSwagger(router)

	appRoutes.SetupRouter(router,
		deps.ApplicationController,
		deps.JobController,
		deps.AuthMiddleware,
		deps.Limiter,
	)

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
