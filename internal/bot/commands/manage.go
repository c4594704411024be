package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database/types"
	"github.com/devilsmp/warden/internal/moderation"
)

var errNoTarget = errors.New("no target user")

// durationUnits maps the duration suffixes moderators use to seconds.
var durationUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
}

// historyFetchLimit bounds how many audit entries are pulled per history
// lookup; historyDisplayLimit bounds how many of those end up in the reply.
const (
	historyFetchLimit   = 50
	historyDisplayLimit = 10
)

// Manage is the single moderation command. The target user comes from the
// first mention, or from the replied-to message's author when the command
// is a reply.
//
// Subcommands: warnings, history, timeout <duration>, untimeout,
// clearwarnings.
type Manage struct {
	env *Env
}

// NewManage creates the manage command.
func NewManage(env *Env) *Manage {
	return &Manage{env: env}
}

// Name implements Command.
func (c *Manage) Name() string { return "manage" }

// Execute implements Command.
func (c *Manage) Execute(ctx context.Context, event *events.GuildMessageCreate, args []string) error {
	guildID := uint64(event.GuildID)
	channelID := uint64(event.ChannelID)

	target, err := c.resolveTarget(event)
	if err != nil {
		c.reply(ctx, channelID, fmt.Sprintf(
			"Please mention a user with `%smanage @user <action>` or reply to their message.",
			c.env.Config.Discord.CommandPrefix))
		return nil
	}

	// Drop the mention token so the subcommand is always args[0]
	sub, rest := splitSubcommand(args)
	if sub == "" {
		c.reply(ctx, channelID, "Available actions: `warnings`, `history`, `timeout <duration>`, `untimeout`, `clearwarnings`.")
		return nil
	}

	switch sub {
	case "warnings":
		return c.showWarnings(ctx, channelID, guildID, target)
	case "history":
		return c.showHistory(ctx, channelID, guildID, target)
	case "timeout":
		return c.timeout(ctx, event, guildID, channelID, target, rest)
	case "untimeout":
		return c.untimeout(ctx, event, guildID, channelID, target)
	case "clearwarnings":
		return c.clearWarnings(ctx, event, guildID, channelID, target)
	default:
		c.reply(ctx, channelID, fmt.Sprintf("Unknown action `%s`.", sub))
		return nil
	}
}

func (c *Manage) showWarnings(ctx context.Context, channelID, guildID, target uint64) error {
	count, err := c.env.DB.Warnings().Count(ctx, guildID, target)
	if err != nil {
		c.reply(ctx, channelID, "Could not look up warnings right now.")
		return err
	}

	c.reply(ctx, channelID, fmt.Sprintf("<@%d> has **%d** warning(s).", target, count))
	return nil
}

func (c *Manage) showHistory(ctx context.Context, channelID, guildID, target uint64) error {
	logs, err := c.env.DB.AuditLogs().GetRecent(ctx, guildID, historyFetchLimit)
	if err != nil {
		c.reply(ctx, channelID, "Could not look up moderation history right now.")
		return err
	}

	lines := historyLines(logs, target)
	if len(lines) == 0 {
		c.reply(ctx, channelID, fmt.Sprintf("No recorded moderation actions for <@%d>.", target))
		return nil
	}

	c.reply(ctx, channelID, fmt.Sprintf("Recent actions for <@%d>:\n%s", target, strings.Join(lines, "\n")))
	return nil
}

// historyLines renders the newest audit entries targeting one user, at
// most historyDisplayLimit of them.
func historyLines(logs []*types.AuditLog, target uint64) []string {
	var lines []string
	for _, entry := range logs {
		if entry.UserID != target {
			continue
		}
		lines = append(lines, fmt.Sprintf("`%s` %s - %s",
			entry.CreatedAt.Format("2006-01-02 15:04"), entry.ActionType, entry.Reason))
		if len(lines) == historyDisplayLimit {
			break
		}
	}
	return lines
}

func (c *Manage) timeout(ctx context.Context, event *events.GuildMessageCreate, guildID, channelID, target uint64, args []string) error {
	if len(args) == 0 {
		c.reply(ctx, channelID, "Please provide a duration, e.g. `timeout 10m`.")
		return nil
	}

	duration, err := parseDuration(args[0])
	if err != nil {
		c.reply(ctx, channelID, fmt.Sprintf("Invalid duration `%s`. Use formats like `30s`, `10m`, `2h`, `1d`.", args[0]))
		return nil
	}

	reason := "Manual timeout by moderator"
	if err := c.env.Exec.Timeout(ctx, guildID, target, duration, reason); err != nil {
		c.reply(ctx, channelID, "Failed to apply timeout. Check the bot's permissions.")
		return err
	}

	c.reply(ctx, channelID, fmt.Sprintf("**<@%d> has been timed out for %s.**", target, args[0]))

	// Best effort; closed DMs are common and not an error worth surfacing
	if err := c.env.Exec.SendDirectMessage(ctx, target, fmt.Sprintf(
		"You have been timed out for %s by a moderator.", args[0])); err != nil {
		c.env.Logger.Debug("Could not DM timed out user", zap.Error(err))
	}

	c.env.Exec.AuditLog(ctx, auditEntry(types.ActionTypeManualTimeout, guildID, target, event, reason, duration))
	return nil
}

func (c *Manage) untimeout(ctx context.Context, event *events.GuildMessageCreate, guildID, channelID, target uint64) error {
	reason := "Timeout removed by moderator"
	if err := c.env.Exec.RemoveTimeout(ctx, guildID, target, reason); err != nil {
		c.reply(ctx, channelID, "Failed to remove timeout. Check the bot's permissions.")
		return err
	}

	c.reply(ctx, channelID, fmt.Sprintf("**<@%d>'s timeout has been removed.**", target))
	c.env.Exec.AuditLog(ctx, auditEntry(types.ActionTypeManualUntimeout, guildID, target, event, reason, 0))
	return nil
}

func (c *Manage) clearWarnings(ctx context.Context, event *events.GuildMessageCreate, guildID, channelID, target uint64) error {
	deleted, err := c.env.DB.Warnings().Reset(ctx, guildID, target)
	if err != nil {
		c.reply(ctx, channelID, "Could not clear warnings right now.")
		return err
	}

	c.reply(ctx, channelID, fmt.Sprintf("Cleared **%d** warning(s) for <@%d>.", deleted, target))
	c.env.Exec.AuditLog(ctx, auditEntry(types.ActionTypeWarningsReset, guildID, target, event,
		fmt.Sprintf("Cleared %d warnings", deleted), 0))
	return nil
}

// resolveTarget finds the user a manage invocation refers to.
func (c *Manage) resolveTarget(event *events.GuildMessageCreate) (uint64, error) {
	if len(event.Message.Mentions) > 0 {
		return uint64(event.Message.Mentions[0].ID), nil
	}
	if ref := event.Message.ReferencedMessage; ref != nil {
		return uint64(ref.Author.ID), nil
	}
	return 0, errNoTarget
}

// reply posts a response in the invoking channel; failures only get logged.
func (c *Manage) reply(ctx context.Context, channelID uint64, content string) {
	if _, err := c.env.Exec.SendChannelMessage(ctx, channelID, content); err != nil {
		c.env.Logger.Error("Failed to send command reply", zap.Error(err))
	}
}

// splitSubcommand skips mention tokens and returns the first real argument
// plus everything after it.
func splitSubcommand(args []string) (string, []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "<@") {
			continue
		}
		return strings.ToLower(arg), args[i+1:]
	}
	return "", nil
}

// parseDuration parses moderator shorthand like "30s", "10m", "2h", "1d", "1w".
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %q", s)
	}

	unit, ok := durationUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit in %q", s)
	}

	value, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid duration value in %q", s)
	}

	return time.Duration(value*unit) * time.Second, nil
}

// auditEntry builds a manual-action audit record attributed to the
// invoking moderator.
func auditEntry(actionType string, guildID, target uint64, event *events.GuildMessageCreate, reason string, duration time.Duration) moderation.AuditEntry {
	return moderation.AuditEntry{
		ActionType:  actionType,
		GuildID:     guildID,
		UserID:      target,
		ModeratorID: uint64(event.Message.Author.ID),
		Reason:      reason,
		Duration:    duration,
	}
}
