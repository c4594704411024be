package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database"
	"github.com/devilsmp/warden/internal/database/types"
	"github.com/devilsmp/warden/internal/moderation"
)

// auditEmbedColor is the accent color for audit channel embeds.
const auditEmbedColor = 0xFF0000

// Executor applies moderation actions through the Discord REST API and
// mirrors them to the audit store. Every call is bounded by the configured
// request timeout; failures are returned to the caller, which isolates
// them per action.
type Executor struct {
	client         bot.Client
	db             *database.Client
	logChannelID   snowflake.ID
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewExecutor creates an executor bound to one Discord client.
func NewExecutor(
	client bot.Client,
	db *database.Client,
	logChannelID uint64,
	requestTimeout time.Duration,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		client:         client,
		db:             db,
		logChannelID:   snowflake.ID(logChannelID),
		requestTimeout: requestTimeout,
		logger:         logger.Named("executor"),
	}
}

// DeleteMessage removes a message from a channel.
func (e *Executor) DeleteMessage(ctx context.Context, channelID, messageID uint64, reason string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	err := e.client.Rest().DeleteMessage(
		snowflake.ID(channelID), snowflake.ID(messageID),
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// SendChannelMessage posts a message and returns its ID so callers can
// schedule ephemeral deletes.
func (e *Executor) SendChannelMessage(ctx context.Context, channelID uint64, content string) (uint64, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	msg, err := e.client.Rest().CreateMessage(snowflake.ID(channelID),
		discord.NewMessageCreateBuilder().SetContent(content).Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to send channel message: %w", err)
	}
	return uint64(msg.ID), nil
}

// Timeout applies a communication timeout to a member.
func (e *Executor) Timeout(ctx context.Context, guildID, userID uint64, duration time.Duration, reason string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	until := time.Now().Add(duration)
	_, err := e.client.Rest().UpdateMember(snowflake.ID(guildID), snowflake.ID(userID),
		discord.MemberUpdate{
			CommunicationDisabledUntil: json.NewNullablePtr(until),
		},
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to timeout member %d: %w", userID, err)
	}
	return nil
}

// RemoveTimeout clears a member's communication timeout.
func (e *Executor) RemoveTimeout(ctx context.Context, guildID, userID uint64, reason string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	_, err := e.client.Rest().UpdateMember(snowflake.ID(guildID), snowflake.ID(userID),
		discord.MemberUpdate{
			CommunicationDisabledUntil: json.NullPtr[time.Time](),
		},
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to remove timeout for member %d: %w", userID, err)
	}
	return nil
}

// AddRole grants a role to a member.
func (e *Executor) AddRole(ctx context.Context, guildID, userID, roleID uint64, reason string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	err := e.client.Rest().AddMemberRole(
		snowflake.ID(guildID), snowflake.ID(userID), snowflake.ID(roleID),
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to add role %d to member %d: %w", roleID, userID, err)
	}
	return nil
}

// RemoveRole removes a role from a member.
func (e *Executor) RemoveRole(ctx context.Context, guildID, userID, roleID uint64, reason string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	err := e.client.Rest().RemoveMemberRole(
		snowflake.ID(guildID), snowflake.ID(userID), snowflake.ID(roleID),
		rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return fmt.Errorf("failed to remove role %d from member %d: %w", roleID, userID, err)
	}
	return nil
}

// SendDirectMessage DMs a user. Users with closed DMs return an error the
// caller is expected to tolerate.
func (e *Executor) SendDirectMessage(ctx context.Context, userID uint64, content string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	channel, err := e.client.Rest().CreateDMChannel(snowflake.ID(userID), rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to create DM channel for user %d: %w", userID, err)
	}

	_, err = e.client.Rest().CreateMessage(channel.ID(),
		discord.NewMessageCreateBuilder().SetContent(content).Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to send DM to user %d: %w", userID, err)
	}
	return nil
}

// AuditLog records an action in the database and mirrors it to the audit
// channel. Neither failure propagates; the action already happened.
func (e *Executor) AuditLog(ctx context.Context, entry moderation.AuditEntry) {
	e.db.AuditLogs().Log(ctx, &types.AuditLog{
		ActionType:   entry.ActionType,
		GuildID:      entry.GuildID,
		UserID:       entry.UserID,
		ModeratorID:  entry.ModeratorID,
		Reason:       entry.Reason,
		DurationSecs: int64(entry.Duration.Seconds()),
		Extra:        entry.Extra,
	})

	if e.logChannelID == 0 {
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Moderation Action").
		AddField("Action", fmt.Sprintf("`%s`", entry.ActionType), true).
		AddField("User", fmt.Sprintf("<@%d>", entry.UserID), true).
		AddField("Reason", entry.Reason, false).
		SetColor(auditEmbedColor).
		SetTimestamp(time.Now())
	if entry.Duration > 0 {
		embed.AddField("Duration", fmt.Sprintf("`%d seconds`", int(entry.Duration.Seconds())), true)
	}

	if len(entry.Extra) > 0 {
		if details, err := sonic.MarshalString(entry.Extra); err == nil {
			embed.AddField("Details", fmt.Sprintf("```json\n%s\n```", details), false)
		}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	_, err := e.client.Rest().CreateMessage(e.logChannelID,
		discord.NewMessageCreateBuilder().SetEmbeds(embed.Build()).Build(),
		rest.WithCtx(ctx))
	if err != nil {
		e.logger.Error("Failed to post audit embed", zap.Error(err))
	}
}

// bound caps an action context at the configured request timeout.
func (e *Executor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.requestTimeout)
}
