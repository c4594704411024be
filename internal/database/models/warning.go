package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database/types"
)

// WarningModel handles database operations for the violation ledger.
type WarningModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWarning creates a repository with database access for the ledger.
func NewWarning(db *bun.DB, logger *zap.Logger) *WarningModel {
	return &WarningModel{
		db:     db,
		logger: logger,
	}
}

// Add appends a warning record and returns the user's updated total across
// all categories. The insert and count run in one transaction so concurrent
// appends for the same user never observe a stale total.
func (r *WarningModel) Add(ctx context.Context, guildID, userID uint64, category, term string) (int, error) {
	var total int

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		warning := &types.Warning{
			GuildID:   guildID,
			UserID:    userID,
			Category:  category,
			Term:      term,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(warning).Exec(ctx); err != nil {
			return err
		}

		count, err := tx.NewSelect().
			Model((*types.Warning)(nil)).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Count(ctx)
		if err != nil {
			return err
		}

		total = count
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to add warning",
			zap.Error(err),
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.String("category", category))
		return 0, err
	}

	r.logger.Debug("Added warning",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.String("category", category),
		zap.Int("total", total))

	return total, nil
}

// Count returns the user's current warning total across all categories.
func (r *WarningModel) Count(ctx context.Context, guildID, userID uint64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*types.Warning)(nil)).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		r.logger.Error("Failed to count warnings",
			zap.Error(err),
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
		return 0, err
	}
	return count, nil
}

// Reset removes all warning records for a user and returns how many were
// deleted. The moderation pipeline never calls this; it exists for the
// manage command and the database CLI.
func (r *WarningModel) Reset(ctx context.Context, guildID, userID uint64) (int, error) {
	res, err := r.db.NewDelete().
		Model((*types.Warning)(nil)).
		Where("guild_id = ?", guildID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		r.logger.Error("Failed to reset warnings",
			zap.Error(err),
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
		return 0, err
	}

	deleted, _ := res.RowsAffected()
	r.logger.Info("Reset warnings",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Int64("deleted", deleted))

	return int(deleted), nil
}
