package setup

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database"
	"github.com/devilsmp/warden/internal/redis"
	"github.com/devilsmp/warden/internal/setup/config"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config  // Application configuration
	CurseList    *config.CurseList
	Logger       *zap.Logger     // Main application logger
	DBLogger     *zap.Logger     // Database-specific logger
	DB           *database.Client
	RedisManager *redis.Manager
	WindowClient rueidis.Client // Redis client backing the sliding window counters
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// The banned term list is fail-open: a missing or unreadable file logs
	// a warning and moderation proceeds without curse detection.
	curseList, err := config.NewCurseList(cfg.Bot.Moderation.CurseListPath)
	if err != nil {
		logger.Warn("Failed to load curse list, curse detection disabled",
			zap.String("path", cfg.Bot.Moderation.CurseListPath),
			zap.Error(err))
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	windowClient, err := connectWithRetry(ctx, "redis", logger, func() (rueidis.Client, error) {
		return redisManager.GetClient(redis.WindowDBIndex)
	})
	if err != nil {
		return nil, err
	}

	// Initialize database with migration check
	db, err := connectWithRetry(ctx, "postgres", logger, func() (*database.Client, error) {
		return database.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, true)
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		CurseList:    curseList,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		WindowClient: windowClient,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// connectWithRetry executes a connection attempt with exponential backoff.
// Startup dependencies are often briefly unavailable when containers come up
// together, so a short retry window avoids crash loops.
func connectWithRetry[T any](ctx context.Context, name string, logger *zap.Logger, connect func() (T, error)) (T, error) {
	var result T

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(60*time.Second),
		backoff.WithInitialInterval(1*time.Second),
		backoff.WithMaxInterval(10*time.Second),
	), 10)

	backoffOperation := func() error {
		var err error
		result, err = connect()
		if err != nil {
			logger.Warn("Connection attempt failed, retrying",
				zap.String("service", name),
				zap.Error(err))
		}
		return err
	}

	err := backoff.Retry(backoffOperation, backoff.WithContext(b, ctx))
	return result, err
}
