package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Warning is one row in the per-guild, per-user violation ledger.
// The warning count for a user is the running total of rows across all
// categories; nothing in the engine decrements it.
type Warning struct {
	bun.BaseModel `bun:"table:warnings"`

	ID        int64     `bun:",pk,autoincrement"` // Unique numeric identifier
	GuildID   uint64    `bun:",notnull"`          // Guild the warning was issued in
	UserID    uint64    `bun:",notnull"`          // User the warning was issued to
	Category  string    `bun:",notnull"`          // Violation category (curse, mass_mentions, spam, ...)
	Term      string    `bun:",nullzero"`         // Matched banned term, when applicable
	CreatedAt time.Time `bun:",notnull"`          // When the warning was issued
}

// AuditLog records one moderation action taken by the engine or a moderator.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs"`

	ID           uuid.UUID              `bun:",pk,type:uuid"` // Unique identifier for the log entry
	ActionType   string                 `bun:",notnull"`      // What kind of action was taken
	GuildID      uint64                 `bun:",notnull"`      // Guild the action was taken in
	UserID       uint64                 `bun:",notnull"`      // User the action targeted
	ModeratorID  uint64                 `bun:",notnull"`      // Who took the action (the bot for automatic actions)
	Reason       string                 `bun:",nullzero"`     // Human-readable reason for the audit trail
	DurationSecs int64                  `bun:",nullzero"`     // Timeout duration in seconds, 0 when not a timeout
	Extra        map[string]interface{} `bun:"type:jsonb"`    // Action-specific details
	CreatedAt    time.Time              `bun:",notnull"`      // When the action happened
}

// Audit log action types written by the moderation engine.
const (
	ActionTypeAutoModeration  = "auto_moderation"
	ActionTypeAntiRaidTimeout = "anti_raid_timeout"
	ActionTypeManualTimeout   = "manual_timeout"
	ActionTypeManualUntimeout = "manual_untimeout"
	ActionTypeWarningsReset   = "warnings_reset"
	ActionTypeMessageDelete   = "message_delete"
)
