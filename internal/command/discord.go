package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/storage"
	"github.com/keshon/songbird/pkg/cmd"
)

// Discord specific contexts, passed to commands as cmd.Invocation.Data.

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
	Log     zerolog.Logger
}

type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
	Log     zerolog.Logger
}

// VoiceState is where a member currently sits in voice.
type VoiceState struct {
	ChannelID string
	UserID    string
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentInteractionHandler receives button presses whose custom id
// starts with the command name.
type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

// DiscordMeta lets middleware read grouping without knowing the concrete
// command type.
type DiscordMeta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual Discord commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx interface{}) error
}

// DiscordAdapter turns a DiscordCommand into a cmd.Command. Component
// presses go through Run as well, so middleware covers them too.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string       { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(_ context.Context, inv *cmd.Invocation) error {
	if v, ok := inv.Data.(*ComponentInteractionContext); ok {
		if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
			return ch.Component(v)
		}
		return nil
	}
	return a.Cmd.Run(inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand adds discordCmd to reg wrapped in mws.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) {
	reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Interaction returns the interaction behind a Discord invocation.
func Interaction(data any) (*discordgo.Session, *discordgo.InteractionCreate, bool) {
	switch v := data.(type) {
	case *SlashInteractionContext:
		return v.Session, v.Event, true
	case *ComponentInteractionContext:
		return v.Session, v.Event, true
	}
	return nil, nil, false
}

// User returns the member or user that triggered the interaction.
func User(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
