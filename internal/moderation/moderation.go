// Package moderation implements the automated content-moderation engine:
// banned-term detection with obfuscation defeat, time-windowed spam and
// raid detection, per-message content signals, and the warning ledger
// escalation policy that turns accumulated violations into timeouts and
// role changes.
package moderation

import (
	"context"
	"time"
)

// Message is the engine's immutable view of one inbound chat message.
type Message struct {
	GuildID          uint64
	ChannelID        uint64
	MessageID        uint64
	AuthorID         uint64
	Content          string
	SentAt           time.Time
	MentionCount     int
	RoleMentionCount int
	IsReply          bool
	AuthorIsBot      bool
}

// Scope identifies whose events a window or ledger entry belongs to.
type Scope struct {
	GuildID uint64
	UserID  uint64
}

// Severity describes what a detection requires of the pipeline.
type Severity string

const (
	SeverityDelete           Severity = "delete"
	SeverityWarn             Severity = "warn"
	SeverityImmediateTimeout Severity = "immediate_timeout"
)

// Warning categories recorded in the ledger.
const (
	CategoryCurse        = "curse"
	CategoryMassMentions = "mass_mentions"
	CategorySpam         = "spam"
	CategoryEmojiSpam    = "emoji_spam"
	CategoryCapsSpam     = "caps_spam"
)

// Detection is the result of one detector firing on a message.
type Detection struct {
	Category string   // Warning category for the ledger
	Severity Severity // What the pipeline must do about it
	Term     string   // Matched banned term or token, when applicable
	Strategy Strategy // Matching strategy, set on banned-term detections
	Count    int      // Window observation count, set on rate detections
	Detail   string   // Human-readable description for the audit trail
}

// Ledger is the engine's view of the persistent violation counter.
// Add appends one record and returns the user's updated total across all
// categories.
type Ledger interface {
	Add(ctx context.Context, guildID, userID uint64, category, term string) (int, error)
}

// AuditEntry is one record for the moderation audit trail.
type AuditEntry struct {
	ActionType  string
	GuildID     uint64
	UserID      uint64
	ModeratorID uint64
	Reason      string
	Duration    time.Duration
	Extra       map[string]interface{}
}

// ActionExecutor applies moderation decisions against the chat platform and
// the audit store. Implementations enforce bounded timeouts on every call;
// the pipeline treats each action as independent and never retries.
type ActionExecutor interface {
	DeleteMessage(ctx context.Context, channelID, messageID uint64, reason string) error
	SendChannelMessage(ctx context.Context, channelID uint64, content string) (uint64, error)
	Timeout(ctx context.Context, guildID, userID uint64, duration time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID uint64, reason string) error
	AddRole(ctx context.Context, guildID, userID, roleID uint64, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID uint64, reason string) error
	SendDirectMessage(ctx context.Context, userID uint64, content string) error
	AuditLog(ctx context.Context, entry AuditEntry)
}
