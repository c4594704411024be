package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/setup/config"
)

// noticeTTL is how long ephemeral warning notices stay in the channel
// before the deferred delete fires.
const noticeTTL = 5 * time.Second

// Pipeline drives every moderation check over one inbound message and
// applies the resulting actions through the executor. Messages from
// different users may be processed fully in parallel; all shared state
// lives behind the ledger and window counters, which are atomic per scope.
type Pipeline struct {
	cfg         *config.BotConfig
	curses      *config.CurseList
	detector    TermScanner
	spam        WindowCounter
	raid        WindowCounter
	ledger      Ledger
	exec        ActionExecutor
	moderatorID uint64
	logger      *zap.Logger
}

// NewPipeline creates a pipeline with all collaborators injected.
// moderatorID is the bot's own user ID, recorded on automatic actions.
func NewPipeline(
	cfg *config.BotConfig,
	curses *config.CurseList,
	spam, raid WindowCounter,
	ledger Ledger,
	exec ActionExecutor,
	moderatorID uint64,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		curses:      curses,
		detector:    NewCurseDetector(NewNormalizer()),
		spam:        spam,
		raid:        raid,
		ledger:      ledger,
		exec:        exec,
		moderatorID: moderatorID,
		logger:      logger.Named("pipeline"),
	}
}

// SetTermScanner replaces the default curse detector. Call before the
// first message is processed.
func (p *Pipeline) SetTermScanner(s TermScanner) {
	p.detector = s
}

// Process runs the full moderation pass over one message. Command-prefixed
// messages additionally go through curse and raid detection, either of
// which short-circuits the remaining stages.
func (p *Pipeline) Process(ctx context.Context, msg Message) {
	if msg.AuthorIsBot || msg.Content == "" || msg.GuildID == 0 {
		return
	}

	prefix := strings.ToLower(p.cfg.Discord.CommandPrefix)
	if prefix != "" && strings.HasPrefix(strings.ToLower(msg.Content), prefix) {
		if p.checkCurse(ctx, msg) {
			return
		}
		if p.checkRaid(ctx, msg) {
			return
		}
	}

	p.runSignals(ctx, msg)
}

// checkCurse scans for banned terms, deleting the message and escalating
// when one is found. Returns true when the message was a violation.
func (p *Pipeline) checkCurse(ctx context.Context, msg Message) bool {
	term, strategy := p.detector.Scan(msg.Content, p.curses.Terms())
	if term == "" {
		return false
	}

	p.logger.Info("Curse word detected",
		zap.Uint64("guildID", msg.GuildID),
		zap.Uint64("userID", msg.AuthorID),
		zap.String("term", term),
		zap.String("strategy", string(strategy)))

	p.apply(ctx, msg, &Detection{
		Category: CategoryCurse,
		Severity: SeverityDelete,
		Term:     term,
		Strategy: strategy,
		Detail:   "Banned word detected: " + term,
	}, fmt.Sprintf(
		"**<@%d>'s message was removed for inappropriate content. (Warning issued)**", msg.AuthorID))

	return true
}

// checkRaid counts this message in the raid window and applies the fixed
// timeout when the burst threshold is reached. Returns true when raid
// protection fired, suppressing the remaining stages.
func (p *Pipeline) checkRaid(ctx context.Context, msg Message) bool {
	scope := Scope{GuildID: msg.GuildID, UserID: msg.AuthorID}

	count, err := p.raid.Record(ctx, scope, "", time.Now())
	if err != nil {
		// Window store unavailable: fail open
		p.logger.Error("Raid window unavailable", zap.Error(err))
		return false
	}
	if count < p.cfg.Moderation.RaidThreshold {
		return false
	}

	p.logger.Warn("Raid activity detected",
		zap.Uint64("guildID", msg.GuildID),
		zap.Uint64("userID", msg.AuthorID),
		zap.Int("messageCount", count))

	p.apply(ctx, msg, &Detection{
		Severity: SeverityImmediateTimeout,
		Count:    count,
		Detail: fmt.Sprintf("Anti-raid protection - %d messages in %d seconds",
			p.cfg.Moderation.RaidThreshold, p.cfg.Moderation.RaidWindow),
	}, fmt.Sprintf(
		"**<@%d> has been timed out for 5 minutes for sending too many messages too quickly (anti-raid protection).**",
		msg.AuthorID))

	return true
}

// apply routes a detection to its enforcement path by severity.
func (p *Pipeline) apply(ctx context.Context, msg Message, det *Detection, notice string) {
	switch det.Severity {
	case SeverityDelete:
		p.deleteAndEscalate(ctx, msg, det, notice)
	case SeverityImmediateTimeout:
		p.timeoutNow(ctx, msg, det, notice)
	default:
		p.warn(ctx, msg, det, notice)
	}
}

// deleteAndEscalate enforces a delete-severity detection: the offending
// message goes first, then the notice, ledger entry, escalation and audit
// record.
func (p *Pipeline) deleteAndEscalate(ctx context.Context, msg Message, det *Detection, notice string) {
	// Delete first; a failure here is logged but never blocks the warning
	if err := p.exec.DeleteMessage(ctx, msg.ChannelID, msg.MessageID, "Banned word: "+det.Term); err != nil {
		p.logger.Error("Failed to delete message with banned word", zap.Error(err))
	}

	p.sendNotice(ctx, msg.ChannelID, notice)

	count, err := p.ledger.Add(ctx, msg.GuildID, msg.AuthorID, det.Category, det.Term)
	if err != nil {
		// Ledger unavailable: the deletion stands, escalation degrades to none
		p.logger.Error("Warning ledger unavailable, skipping escalation", zap.Error(err))
		return
	}

	decision := Escalate(det.Category, count)
	p.applyDecision(ctx, msg, det.Category, count, decision)

	p.exec.AuditLog(ctx, AuditEntry{
		ActionType:  "auto_moderation",
		GuildID:     msg.GuildID,
		UserID:      msg.AuthorID,
		ModeratorID: p.moderatorID,
		Reason:      fmt.Sprintf("%s (Warning %d)", det.Detail, count),
		Duration:    decision.Timeout,
		Extra: map[string]interface{}{
			"term":          det.Term,
			"strategy":      string(det.Strategy),
			"warning_count": count,
		},
	})
}

// timeoutNow enforces an immediate-timeout detection: the fixed duration
// is applied straight away and the warning ledger is never touched.
func (p *Pipeline) timeoutNow(ctx context.Context, msg Message, det *Detection, notice string) {
	if err := p.exec.Timeout(ctx, msg.GuildID, msg.AuthorID, RaidTimeout, "Anti-raid protection - too many messages"); err != nil {
		p.logger.Error("Failed to apply anti-raid timeout", zap.Error(err))
	}

	if _, err := p.exec.SendChannelMessage(ctx, msg.ChannelID, notice); err != nil {
		p.logger.Error("Failed to send raid notification", zap.Error(err))
	}

	p.exec.AuditLog(ctx, AuditEntry{
		ActionType:  "anti_raid_timeout",
		GuildID:     msg.GuildID,
		UserID:      msg.AuthorID,
		ModeratorID: p.moderatorID,
		Reason:      det.Detail,
		Duration:    RaidTimeout,
		Extra: map[string]interface{}{
			"message_count": det.Count,
			"threshold":     p.cfg.Moderation.RaidThreshold,
			"window":        p.cfg.Moderation.RaidWindow,
		},
	})
}

// runSignals runs the independent content-signal checks. They share no
// mutable state, so they run concurrently; each one is isolated so a
// panicking detector cannot take down the others.
func (p *Pipeline) runSignals(ctx context.Context, msg Message) {
	checks := []struct {
		name string
		fn   func(context.Context, Message)
	}{
		{"mass_mentions", p.checkMentions},
		{"spam", p.checkSpam},
		{"emoji_density", p.checkEmoji},
		{"caps_density", p.checkCaps},
	}

	workers := pool.New().WithContext(ctx)
	for _, check := range checks {
		workers.Go(func(ctx context.Context) error {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Detector panicked",
						zap.String("detector", check.name),
						zap.Any("panic", r))
				}
			}()
			check.fn(ctx, msg)
			return nil
		})
	}
	_ = workers.Wait()
}

func (p *Pipeline) checkMentions(ctx context.Context, msg Message) {
	det := CheckMassMentions(msg, p.cfg.Moderation.MaxMentions)
	if det == nil {
		return
	}
	notice := fmt.Sprintf("**<@%d> Please avoid mass mentions. Your message contained %d mentions.**",
		msg.AuthorID, msg.MentionCount+msg.RoleMentionCount)
	p.apply(ctx, msg, det, notice)
}

func (p *Pipeline) checkSpam(ctx context.Context, msg Message) {
	scope := Scope{GuildID: msg.GuildID, UserID: msg.AuthorID}

	count, err := p.spam.Record(ctx, scope, Fingerprint(msg.Content), time.Now())
	if err != nil {
		p.logger.Error("Spam window unavailable", zap.Error(err))
		return
	}
	if count < p.cfg.Moderation.SpamThreshold {
		return
	}

	det := &Detection{
		Category: CategorySpam,
		Severity: SeverityWarn,
		Count:    count,
		Detail:   fmt.Sprintf("%d similar messages detected", count),
	}
	notice := fmt.Sprintf("**<@%d> Please stop spamming similar messages (%d detected).**", msg.AuthorID, count)
	p.apply(ctx, msg, det, notice)
}

func (p *Pipeline) checkEmoji(ctx context.Context, msg Message) {
	det := CheckEmojiDensity(msg, p.cfg.Moderation.MaxEmojiPercent)
	if det == nil {
		return
	}
	notice := fmt.Sprintf("**<@%d> Please avoid using too many emojis in your messages.**", msg.AuthorID)
	p.apply(ctx, msg, det, notice)
}

func (p *Pipeline) checkCaps(ctx context.Context, msg Message) {
	det := CheckExcessiveCaps(msg, p.cfg.Moderation.MaxCapsPercent)
	if det == nil {
		return
	}
	notice := fmt.Sprintf("**<@%d> Please avoid using excessive caps in your messages.**", msg.AuthorID)
	p.apply(ctx, msg, det, notice)
}

// warn handles one warn-severity detection: notice, ledger, audit and
// escalation. The message itself is never deleted for these categories.
func (p *Pipeline) warn(ctx context.Context, msg Message, det *Detection, notice string) {
	p.sendNotice(ctx, msg.ChannelID, notice)

	count, err := p.ledger.Add(ctx, msg.GuildID, msg.AuthorID, det.Category, det.Term)
	if err != nil {
		p.logger.Error("Warning ledger unavailable, skipping escalation",
			zap.Error(err),
			zap.String("category", det.Category))
		return
	}

	p.exec.AuditLog(ctx, AuditEntry{
		ActionType:  "auto_moderation",
		GuildID:     msg.GuildID,
		UserID:      msg.AuthorID,
		ModeratorID: p.moderatorID,
		Reason:      fmt.Sprintf("%s (Warning %d)", det.Detail, count),
		Extra: map[string]interface{}{
			"category":      det.Category,
			"warning_count": count,
		},
	})

	decision := Escalate(det.Category, count)
	p.applyDecision(ctx, msg, det.Category, count, decision)
}

// applyDecision enforces an escalation decision. Role swaps fall back to
// the timeout when either configured role is unresolvable.
func (p *Pipeline) applyDecision(ctx context.Context, msg Message, category string, count int, decision Decision) {
	if decision.RoleSwap {
		if p.swapRoles(ctx, msg, count) {
			return
		}
		// Fall through to the timeout when the roles could not be applied
	}

	if decision.Timeout <= 0 {
		return
	}

	reason := fmt.Sprintf("Automatic timeout after %d %s warnings", count, category)
	if err := p.exec.Timeout(ctx, msg.GuildID, msg.AuthorID, decision.Timeout, reason); err != nil {
		p.logger.Error("Failed to apply timeout",
			zap.Error(err),
			zap.Uint64("userID", msg.AuthorID),
			zap.Duration("duration", decision.Timeout))
		return
	}

	if _, err := p.exec.SendChannelMessage(ctx, msg.ChannelID, fmt.Sprintf(
		"**<@%d> has been timed out for %s after receiving %d warnings.**",
		msg.AuthorID, humanDuration(decision.Timeout), count)); err != nil {
		p.logger.Error("Failed to send timeout notification", zap.Error(err))
	}
}

// swapRoles demotes a repeat offender by swapping the member role for the
// demoted role. Returns false when either role edit failed, in which case
// the caller falls back to a timeout.
func (p *Pipeline) swapRoles(ctx context.Context, msg Message, count int) bool {
	memberRole := p.cfg.Discord.MemberRoleID
	demotedRole := p.cfg.Discord.DemotedRoleID
	if memberRole == 0 || demotedRole == 0 {
		return false
	}

	reason := "Exceeded maximum warnings"
	if err := p.exec.RemoveRole(ctx, msg.GuildID, msg.AuthorID, memberRole, reason); err != nil {
		p.logger.Error("Failed to remove member role", zap.Error(err))
		return false
	}
	if err := p.exec.AddRole(ctx, msg.GuildID, msg.AuthorID, demotedRole, reason); err != nil {
		p.logger.Error("Failed to add demoted role", zap.Error(err))
		return false
	}

	if _, err := p.exec.SendChannelMessage(ctx, msg.ChannelID, fmt.Sprintf(
		"**<@%d> has been demoted for repeatedly using banned words after multiple warnings.**",
		msg.AuthorID)); err != nil {
		p.logger.Error("Failed to send demotion notification", zap.Error(err))
	}

	p.logger.Info("Demoted repeat offender",
		zap.Uint64("guildID", msg.GuildID),
		zap.Uint64("userID", msg.AuthorID),
		zap.Int("warningCount", count))

	return true
}

// sendNotice posts an ephemeral warning notice and schedules its removal.
// The deferred delete is fire-and-forget; failures are ignored.
func (p *Pipeline) sendNotice(ctx context.Context, channelID uint64, content string) {
	noticeID, err := p.exec.SendChannelMessage(ctx, channelID, content)
	if err != nil {
		p.logger.Error("Failed to send warning notice", zap.Error(err))
		return
	}

	time.AfterFunc(noticeTTL, func() {
		_ = p.exec.DeleteMessage(context.Background(), channelID, noticeID, "Ephemeral warning notice")
	})
}

// humanDuration renders a timeout length the way moderators expect to
// read it in channel notifications.
func humanDuration(d time.Duration) string {
	switch d {
	case time.Minute:
		return "1 minute"
	case 30 * time.Minute:
		return "30 minutes"
	case time.Hour:
		return "1 hour"
	case 2 * time.Hour:
		return "2 hours"
	case 3 * time.Hour:
		return "3 hours"
	case 5 * time.Minute:
		return "5 minutes"
	default:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
}
