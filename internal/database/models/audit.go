package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database/types"
)

// AuditLogModel handles database operations for moderation action logs.
type AuditLogModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAuditLog creates a repository with database access for
// storing and retrieving moderation action logs.
func NewAuditLog(db *bun.DB, logger *zap.Logger) *AuditLogModel {
	return &AuditLogModel{
		db:     db,
		logger: logger,
	}
}

// Log stores a moderation action in the database. Failures are logged and
// swallowed so a broken audit store never blocks a moderating action.
func (r *AuditLogModel) Log(ctx context.Context, log *types.AuditLog) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NewInsert().Model(log).Exec(ctx)
	if err != nil {
		r.logger.Error("Failed to log moderation action",
			zap.Error(err),
			zap.Uint64("guildID", log.GuildID),
			zap.Uint64("userID", log.UserID),
			zap.String("actionType", log.ActionType))
		return
	}

	r.logger.Debug("Logged moderation action",
		zap.Uint64("guildID", log.GuildID),
		zap.Uint64("userID", log.UserID),
		zap.String("actionType", log.ActionType))
}

// GetRecent retrieves the most recent actions for a guild, newest first.
func (r *AuditLogModel) GetRecent(ctx context.Context, guildID uint64, limit int) ([]*types.AuditLog, error) {
	var logs []*types.AuditLog

	err := r.db.NewSelect().
		Model(&logs).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.logger.Error("Failed to get audit logs", zap.Error(err))
		return nil, err
	}

	return logs, nil
}
