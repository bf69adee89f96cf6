package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/command/core"
	"github.com/keshon/songbird/internal/command/music"
	"github.com/keshon/songbird/internal/config"
	"github.com/keshon/songbird/internal/middleware"
	musicplayer "github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/track"
	"github.com/keshon/songbird/internal/music/voice"
	"github.com/keshon/songbird/internal/storage"
	"github.com/keshon/songbird/pkg/cmd"
	"github.com/keshon/songbird/pkg/jobmgr"
)

// Resolver turns user input into playable tracks.
type Resolver interface {
	Resolve(ctx context.Context, input string) (track.Result, error)
}

type Options struct {
	Config   *config.Config
	Storage  *storage.Storage
	Resolver Resolver
	Builder  musicplayer.Builder
	Metadata musicplayer.Metadata
	Logger   zerolog.Logger
}

// Bot is a Discord music bot.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	resolver Resolver
	builder  musicplayer.Builder
	metadata musicplayer.Metadata
	log      zerolog.Logger

	commands *cmd.Registry
	joiner   voice.Joiner
	queues   *musicplayer.Registry
	jobs     *jobmgr.Manager
	stopJobs context.CancelFunc

	mu       sync.Mutex
	announce map[string]string // guild -> text channel
}

func New(opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + opts.Config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b := newBot(dg, opts)
	b.joiner = voice.NewManager(dg, b.log)

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	return b, nil
}

func newBot(dg *discordgo.Session, opts Options) *Bot {
	b := &Bot{
		dg:       dg,
		cfg:      opts.Config,
		storage:  opts.Storage,
		resolver: opts.Resolver,
		builder:  opts.Builder,
		metadata: opts.Metadata,
		log:      opts.Logger.With().Str("component", "discord").Logger(),
		commands: cmd.NewRegistry(),
		announce: make(map[string]string),
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.jobs = jobmgr.NewManager(ctx, b.log)
	b.stopJobs = cancel
	b.queues = musicplayer.NewRegistry(b.newQueue)
	b.registerCommands()
	return b
}

func (b *Bot) registerCommands() {
	command.RegisterCommand(b.commands, &core.PingCommand{},
		middleware.WithCommandLogger(),
	)
	command.RegisterCommand(b.commands, &core.HelpCommand{Registry: b.commands},
		middleware.WithCommandLogger(),
	)
	command.RegisterCommand(b.commands, &core.HistoryCommand{},
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(),
	)
	command.RegisterCommand(b.commands, &music.MusicCommand{Bot: b},
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(),
	)
}

// Run connects to the gateway and blocks until ctx is cancelled. Every
// guild queue is closed before it returns.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		b.stopJobs()
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")

	b.queues.Close()
	b.stopJobs()
	b.jobs.StopAll()
	if err := b.dg.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		b.syncCommands(g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Debug().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	b.syncCommands(g.ID)
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) syncCommands(guildID string) {
	if !b.cfg.InitSlashCommands {
		return
	}
	err := b.jobs.StartAsync("sync:"+guildID, func(ctx context.Context) error {
		return b.syncGuildCommands(ctx, guildID)
	})
	if err != nil && !errors.Is(err, jobmgr.ErrRunning) {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("schedule command sync")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var (
		name string
		data any
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name = i.ApplicationCommandData().Name
		data = &command.SlashInteractionContext{Session: s, Event: i, Storage: b.storage, Log: b.log}
	case discordgo.InteractionMessageComponent:
		name, _, _ = strings.Cut(i.MessageComponentData().CustomID, ":")
		data = &command.ComponentInteractionContext{Session: s, Event: i, Storage: b.storage, Log: b.log}
	default:
		return
	}

	c := b.commands.Get(name)
	if c == nil {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	if err := c.Run(context.Background(), &cmd.Invocation{Data: data}); err != nil {
		b.log.Error().Err(err).Str("command", name).Msg("command failed")
		_ = command.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running command: %v", err),
			Color:       command.EmbedColor,
		})
	}
}
