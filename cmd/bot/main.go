package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devilsmp/warden/internal/bot"
	"github.com/devilsmp/warden/internal/moderation"
	"github.com/devilsmp/warden/internal/setup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// SweepInterval is how often expired window entries are pruned in the
	// background, independent of prune-on-record.
	SweepInterval = time.Minute
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	modCfg := &app.Config.Bot.Moderation

	// Sliding window counters for spam and raid detection
	spam := moderation.NewRedisCounter(
		app.WindowClient,
		moderation.WindowSpamCheck,
		time.Duration(modCfg.SpamWindow)*time.Second,
		app.Logger,
	)
	raid := moderation.NewRedisCounter(
		app.WindowClient,
		moderation.WindowRaidMessage,
		time.Duration(modCfg.RaidWindow)*time.Second,
		app.Logger,
	)
	spam.StartSweeper(ctx, SweepInterval)
	raid.StartSweeper(ctx, SweepInterval)

	// Create bot instance
	discordBot, err := bot.New(
		&app.Config.Bot,
		app.DB,
		app.CurseList,
		spam, raid,
		app.RedisManager,
		app.Logger,
	)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session
	discordBot.Close()
}
