package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/devilsmp/warden/internal/database/types"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []interface{}{
			(*types.Warning)(nil),
			(*types.AuditLog)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		// Index for the warning count lookup on every ledger append
		_, err := db.NewCreateIndex().
			Model((*types.Warning)(nil)).
			Index("idx_warnings_guild_user").
			Column("guild_id", "user_id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create warnings index: %w", err)
		}

		// Index for paging a guild's audit history
		_, err = db.NewCreateIndex().
			Model((*types.AuditLog)(nil)).
			Index("idx_audit_logs_guild_created").
			Column("guild_id", "created_at").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create audit logs index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []interface{}{
			(*types.AuditLog)(nil),
			(*types.Warning)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
