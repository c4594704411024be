package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/bot/commands"
	"github.com/devilsmp/warden/internal/database"
	"github.com/devilsmp/warden/internal/database/types"
	"github.com/devilsmp/warden/internal/moderation"
	"github.com/devilsmp/warden/internal/redis"
	"github.com/devilsmp/warden/internal/setup/config"
)

// seenMessageTTL bounds how long processed message IDs are remembered for
// gateway redelivery deduplication.
const seenMessageTTL = 10 * time.Minute

// Bot owns the Discord connection and routes every inbound message through
// the command registry and the moderation pipeline. All collaborators are
// injected at construction; nothing is looked up through ambient state.
type Bot struct {
	cfg      *config.BotConfig
	client   bot.Client
	db       *database.Client
	executor *Executor
	pipeline *moderation.Pipeline
	registry *commands.Registry
	cache    rueidis.Client
	logger   *zap.Logger
}

// New initializes a Bot instance by wiring the Discord client, the action
// executor, the command registry and the moderation pipeline together.
func New(
	cfg *config.BotConfig,
	db *database.Client,
	curses *config.CurseList,
	spam, raid moderation.WindowCounter,
	redisManager *redis.Manager,
	logger *zap.Logger,
) (*Bot, error) {
	cache, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache client: %w", err)
	}

	b := &Bot{
		cfg:    cfg,
		db:     db,
		cache:  cache,
		logger: logger,
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate: b.handleMessageCreate,
			OnGuildMessageDelete: b.handleMessageDelete,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}
	b.client = client

	b.executor = NewExecutor(
		client,
		db,
		cfg.Discord.LogChannelID,
		time.Duration(cfg.RequestTimeout)*time.Millisecond,
		logger,
	)

	env := &commands.Env{
		DB:     db,
		Exec:   b.executor,
		Config: cfg,
		Logger: logger.Named("commands"),
	}
	b.registry = commands.NewRegistry(
		commands.NewManage(env),
	)

	b.pipeline = moderation.NewPipeline(
		cfg,
		curses,
		spam, raid,
		db.Warnings(),
		b.executor,
		uint64(client.ApplicationID()),
		logger,
	)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(context.Background())
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
}

// handleMessageCreate dispatches prefixed commands and hands every message
// to the moderation pipeline. Pipeline work runs in its own goroutine so a
// burst of messages never backs up the gateway reader.
func (b *Bot) handleMessageCreate(event *events.GuildMessageCreate) {
	message := event.Message
	if message.Author.Bot || message.Content == "" {
		return
	}

	// The gateway can redeliver events after a reconnect. Duplicates are
	// dropped so one message never earns two warnings; Redis errors fall
	// through to processing.
	if b.alreadySeen(uint64(message.ID)) {
		return
	}

	msg := moderation.Message{
		GuildID:          uint64(event.GuildID),
		ChannelID:        uint64(event.ChannelID),
		MessageID:        uint64(message.ID),
		AuthorID:         uint64(message.Author.ID),
		Content:          message.Content,
		SentAt:           message.CreatedAt,
		MentionCount:     len(message.Mentions),
		RoleMentionCount: len(message.MentionRoles),
		IsReply:          message.ReferencedMessage != nil,
		AuthorIsBot:      message.Author.Bot,
	}

	prefix := strings.ToLower(b.cfg.Discord.CommandPrefix)
	if prefix != "" && strings.HasPrefix(strings.ToLower(message.Content), prefix) {
		b.dispatchCommand(event, strings.TrimSpace(message.Content[len(prefix):]))
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in moderation pipeline", zap.Any("panic", r))
			}
		}()
		b.pipeline.Process(context.Background(), msg)
	}()
}

// dispatchCommand routes one prefixed message through the static registry.
func (b *Bot) dispatchCommand(event *events.GuildMessageCreate, commandText string) {
	channelID := uint64(event.ChannelID)

	if commandText == "" {
		b.sendText(channelID, fmt.Sprintf("Please specify a command after `%s`", b.cfg.Discord.CommandPrefix))
		return
	}

	parts := strings.Fields(commandText)
	name := strings.ToLower(parts[0])

	cmd, ok := b.registry.Get(name)
	if !ok {
		b.sendText(channelID, fmt.Sprintf(
			"⚠️ Unknown command. Please use `%smanage @user` for all moderation actions.",
			b.cfg.Discord.CommandPrefix))
		return
	}

	// The legacy "manage user" form is ignored without a response
	if len(parts) >= 2 && strings.EqualFold(parts[1], "user") {
		b.logger.Debug("Ignoring legacy command form", zap.String("content", commandText))
		return
	}

	if err := cmd.Execute(context.Background(), event, parts[1:]); err != nil {
		b.logger.Error("Command execution failed",
			zap.Error(err),
			zap.String("command", name))
	}
}

// handleMessageDelete logs deletions of other users' command-prefixed
// messages to the audit trail.
func (b *Bot) handleMessageDelete(event *events.GuildMessageDelete) {
	message := event.Message
	if message.Author.Bot || message.Content == "" {
		return
	}

	prefix := strings.ToLower(b.cfg.Discord.CommandPrefix)
	if prefix == "" || !strings.HasPrefix(strings.ToLower(message.Content), prefix) {
		return
	}

	b.executor.AuditLog(context.Background(), moderation.AuditEntry{
		ActionType:  types.ActionTypeMessageDelete,
		GuildID:     uint64(event.GuildID),
		UserID:      uint64(message.Author.ID),
		ModeratorID: uint64(b.client.ApplicationID()),
		Reason:      "Command message deleted",
		Extra: map[string]interface{}{
			"channel_id": uint64(event.ChannelID),
			"content":    message.Content,
		},
	})
}

// alreadySeen marks a message ID as processed and reports whether it had
// been processed before.
func (b *Bot) alreadySeen(messageID uint64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cmd := b.cache.B().Set().
		Key(fmt.Sprintf("seen_message:%d", messageID)).
		Value("1").
		Nx().
		Ex(seenMessageTTL).
		Build()

	err := b.cache.Do(ctx, cmd).Error()
	switch {
	case err == nil:
		return false
	case rueidis.IsRedisNil(err):
		return true
	default:
		b.logger.Warn("Message dedup check failed", zap.Error(err))
		return false
	}
}

// sendText posts a plain channel message, logging failures.
func (b *Bot) sendText(channelID uint64, content string) {
	if _, err := b.executor.SendChannelMessage(context.Background(), channelID, content); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}
