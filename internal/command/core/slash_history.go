package core

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
)

// HistoryCommand lists the last commands run in the guild.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Show recently used commands" }
func (c *HistoryCommand) Group() string       { return "core" }
func (c *HistoryCommand) Category() string    { return "🕯️ Information" }

func (c *HistoryCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HistoryCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := context.Session, context.Event

	records, err := context.Storage.FetchCommandHistory(e.GuildID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	desc := "No commands yet."
	if len(records) > 0 {
		var b strings.Builder
		for i := len(records) - 1; i >= 0; i-- {
			r := records[i]
			fmt.Fprintf(&b, "<t:%d:R> **%s** `/%s`\n", r.Datetime.Unix(), r.Username, r.Command)
		}
		desc = b.String()
	}

	return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       "🕯️ Command History",
		Description: desc,
		Color:       command.EmbedColor,
	})
}
