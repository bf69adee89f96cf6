package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
)

type PingCommand struct{}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check the bot's gateway latency" }
func (c *PingCommand) Group() string       { return "core" }
func (c *PingCommand) Category() string    { return "🕯️ Information" }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *PingCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s := context.Session
	return command.RespondEmbedEphemeral(s, context.Event, &discordgo.MessageEmbed{
		Title:       "🏓 Pong!",
		Description: fmt.Sprintf("Latency: %dms", s.HeartbeatLatency().Milliseconds()),
		Color:       command.EmbedColor,
	})
}
