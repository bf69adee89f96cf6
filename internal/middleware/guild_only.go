package middleware

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/pkg/cmd"
)

// WithGuildOnly rejects interactions that do not come from a guild.
func WithGuildOnly() cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, ok := command.Interaction(inv.Data)
			if !ok || e.GuildID != "" {
				return next.Run(ctx, inv)
			}
			return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
				Description: "This command can only be used in a server.",
				Color:       command.EmbedColor,
			})
		})
	}
}
