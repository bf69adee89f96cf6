package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/version"
	"github.com/keshon/songbird/pkg/cmd"
)

type HelpCommand struct {
	Registry *cmd.Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a list of available commands" }
func (c *HelpCommand) Group() string       { return "core" }
func (c *HelpCommand) Category() string    { return "🕯️ Information" }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HelpCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	return command.RespondEmbedEphemeral(context.Session, context.Event, &discordgo.MessageEmbed{
		Title:       version.AppName + " Help",
		Description: buildHelpByCategory(c.Registry.GetAll()),
		Color:       command.EmbedColor,
	})
}

// buildHelpByCategory lists commands under their category, both sorted by
// name. Commands without Discord metadata go under "Other".
func buildHelpByCategory(all []cmd.Command) string {
	categories := make(map[string][]cmd.Command)
	for _, c := range all {
		cat := "Other"
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok && meta.Category() != "" {
			cat = meta.Category()
		}
		categories[cat] = append(categories[cat], c)
	}

	names := make([]string, 0, len(categories))
	for cat := range categories {
		names = append(names, cat)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, cat := range names {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		cmds := categories[cat]
		sort.Slice(cmds, func(i, j int) bool {
			return cmds[i].Name() < cmds[j].Name()
		})
		for _, c := range cmds {
			fmt.Fprintf(&sb, "`/%s` - %s\n", c.Name(), c.Description())
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
