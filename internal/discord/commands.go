package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/pkg/cmd"
)

// createRate keeps command registration well under the API rate limit.
const createRate = rate.Limit(40)

// commandDefinition returns the slash definition of c, looking through
// middleware wrappers.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range b.commands.GetAll() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch self: %w", err)
	}
	return user.ID, nil
}

// syncGuildCommands makes the guild's slash commands match the registry:
// obsolete ones are deleted and only definitions whose hash changed since
// the last sync are sent again.
func (b *Bot) syncGuildCommands(ctx context.Context, guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}
	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	cached, err := b.storage.CommandHashes(guildID)
	if err != nil {
		return err
	}

	plan := planSync(b.commandDefinitions(), remote, cached)
	log := b.log.With().Str("guild", guildID).Logger()

	for _, rc := range plan.remove {
		log.Info().Str("command", rc.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Str("command", rc.Name).Msg("delete command")
		}
	}

	limiter := rate.NewLimiter(createRate, 1)
	for _, def := range plan.upsert {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			log.Error().Err(err).Str("command", def.Name).Msg("register command")
			delete(plan.hashes, def.Name)
			continue
		}
		log.Info().Str("command", def.Name).Msg("registered command")
	}

	return b.storage.SetCommandHashes(guildID, plan.hashes)
}

type syncPlan struct {
	remove []*discordgo.ApplicationCommand
	upsert []*discordgo.ApplicationCommand
	hashes map[string]string
}

// planSync compares local definitions with what the guild has. A command
// missing remotely is always sent, even when its hash is cached.
func planSync(local, remote []*discordgo.ApplicationCommand, cached map[string]string) syncPlan {
	p := syncPlan{hashes: make(map[string]string, len(local))}

	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}
	remoteNames := make(map[string]struct{}, len(remote))
	for _, rc := range remote {
		remoteNames[rc.Name] = struct{}{}
		if _, ok := localNames[rc.Name]; !ok {
			p.remove = append(p.remove, rc)
		}
	}

	for _, d := range local {
		h := hashCommand(d)
		p.hashes[d.Name] = h
		_, present := remoteNames[d.Name]
		if !present || cached[d.Name] != h {
			p.upsert = append(p.upsert, d)
		}
	}
	return p
}
