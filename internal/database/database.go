package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database/migrations"
	"github.com/devilsmp/warden/internal/database/models"
	"github.com/devilsmp/warden/internal/setup/config"
)

// Client represents the database connection and operations.
// It manages access to the repositories that handle the violation ledger
// and the moderation audit log.
type Client struct {
	db        *bun.DB
	logger    *zap.Logger
	warnings  *models.WarningModel
	auditLogs *models.AuditLogModel
}

// NewConnection establishes a new database connection and returns a Client
// instance. When runMigrations is set, pending migrations are applied before
// the client is returned.
func NewConnection(ctx context.Context, config *config.PostgreSQL, logger *zap.Logger, runMigrations bool) (*Client, error) {
	// Initialize database connection with config values
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		pgdriver.WithUser(config.User),
		pgdriver.WithPassword(config.Password),
		pgdriver.WithDatabase(config.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("warden"),
	))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(config.MaxOpenConns)
	sqldb.SetMaxIdleConns(config.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Minute)

	// Create Bun db instance
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger))

	if runMigrations {
		if err := applyMigrations(ctx, db, logger); err != nil {
			return nil, err
		}
	}

	// Create repositories
	client := &Client{
		db:        db,
		logger:    logger,
		warnings:  models.NewWarning(db, logger),
		auditLogs: models.NewAuditLog(db, logger),
	}

	logger.Info("Database connection established")
	return client, nil
}

// applyMigrations initializes the migration tables and runs any pending
// migrations under the migrator lock.
func applyMigrations(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock migrator: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !group.IsZero() {
		logger.Info("Successfully ran database migrations",
			zap.Int64("group", group.ID),
			zap.Int("migrations", len(group.Migrations)))
	}

	return nil
}

// Close gracefully shuts down the database connection.
func (c *Client) Close() error {
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}
	c.logger.Info("Database connection closed")
	return nil
}

// Warnings returns the repository for the violation ledger.
func (c *Client) Warnings() *models.WarningModel {
	return c.warnings
}

// AuditLogs returns the repository for moderation action logs.
func (c *Client) AuditLogs() *models.AuditLogModel {
	return c.auditLogs
}

// DB returns the underlying bun.DB instance.
func (c *Client) DB() *bun.DB {
	return c.db
}
