// Package commands implements the bot's text commands behind a static
// registry built at startup. There is no runtime discovery; every command
// is registered explicitly.
package commands

import (
	"context"

	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	"github.com/devilsmp/warden/internal/database"
	"github.com/devilsmp/warden/internal/moderation"
	"github.com/devilsmp/warden/internal/setup/config"
)

// Env holds the dependencies commands operate with.
type Env struct {
	DB     *database.Client
	Exec   moderation.ActionExecutor
	Config *config.BotConfig
	Logger *zap.Logger
}

// Command is one text command reachable through the registry.
type Command interface {
	Name() string
	Execute(ctx context.Context, event *events.GuildMessageCreate, args []string) error
}

// Registry maps command names to handlers. Built once at startup and
// read-only afterwards.
type Registry struct {
	commands map[string]Command
}

// NewRegistry builds the registry from an explicit command list.
func NewRegistry(cmds ...Command) *Registry {
	commands := make(map[string]Command, len(cmds))
	for _, cmd := range cmds {
		commands[cmd.Name()] = cmd
	}
	return &Registry{commands: commands}
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}
