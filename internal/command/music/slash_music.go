package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/sources"
	"github.com/keshon/songbird/internal/music/sources/spotify"
	"github.com/keshon/songbird/internal/music/track"
	"github.com/keshon/songbird/internal/storage"
)

const (
	resolveTimeout = 2 * time.Minute
	connectTimeout = 30 * time.Second
)

type MusicCommand struct {
	Bot Bot
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := 0.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a link, a playlist or the first search result",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "next",
						Description: "Queue right after the current track",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "next",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "now",
				Description: "Show the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show upcoming tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track from the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "Position as shown by /music queue",
						Required:    true,
						MinValue:    func() *float64 { v := 1.0; return &v }(),
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Clear upcoming tracks",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "all",
						Description: "Also stop the current track",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Show or set the volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "percent",
						Description: "0 to 200",
						MinValue:    &minVolume,
						MaxValue:    player.MaxVolume * 100,
					},
				},
			},
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s := context.Session
	e := context.Event

	if len(e.ApplicationCommandData().Options) == 0 {
		return reply(s, e, "Missing subcommand.")
	}

	sub := e.ApplicationCommandData().Options[0]
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		opts[opt.Name] = opt
	}

	switch sub.Name {
	case "play":
		next := false
		if opt, ok := opts["next"]; ok {
			next = opt.BoolValue()
		}
		return c.runPlay(s, e, opts["input"].StringValue(), next)
	case "next":
		return c.runSimple(s, e, c.Bot.Queue(e.GuildID).Skip, player.StatusSkipped)
	case "pause":
		return c.runSimple(s, e, c.Bot.Queue(e.GuildID).Pause, player.StatusPaused)
	case "resume":
		return c.runSimple(s, e, c.Bot.Queue(e.GuildID).Resume, player.StatusResumed)
	case "stop":
		c.Bot.Queue(e.GuildID).Stop()
		return statusReply(s, e, player.StatusStopped, "Queue cleared.")
	case "now":
		return c.runNowPlaying(s, e)
	case "queue":
		return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
			Title:       "🎶 Queue",
			Description: queueDescription(c.Bot.Queue(e.GuildID).Snapshot()),
			Color:       command.EmbedColor,
		})
	case "remove":
		return c.runRemove(s, e, int(opts["position"].IntValue()))
	case "clear":
		all := false
		if opt, ok := opts["all"]; ok {
			all = opt.BoolValue()
		}
		c.Bot.Queue(e.GuildID).Clear(all)
		if all {
			return statusReply(s, e, player.StatusStopped, "Queue cleared.")
		}
		return reply(s, e, "Upcoming tracks cleared.")
	case "volume":
		if opt, ok := opts["percent"]; ok {
			return c.runSetVolume(s, e, context.Storage, context.Log, float64(opt.IntValue())/100)
		}
		return reply(s, e, fmt.Sprintf("🔊 Volume is %d%%.", percent(c.Bot.Queue(e.GuildID).Volume())))
	default:
		return reply(s, e, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicCommand) runPlay(s *discordgo.Session, e *discordgo.InteractionCreate, input string, next bool) error {
	if strings.TrimSpace(input) == "" {
		return reply(s, e, "Input is required.")
	}

	if err := command.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	user := command.User(e)
	voiceState, err := c.Bot.FindUserVoiceState(e.GuildID, user.ID)
	if err != nil {
		return followupError(s, e, "🎵 Voice Error", "Join a voice channel first.")
	}

	queue := c.Bot.Queue(e.GuildID)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), connectTimeout)
	defer cancelConnect()
	if err := queue.EnsureConnected(connectCtx, voiceState.ChannelID); err != nil {
		return followupError(s, e, "🎵 Voice Error", fmt.Sprintf("Could not join your voice channel.\n\n**Error:** %v", err))
	}
	c.Bot.Announce(e.GuildID, e.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	result, err := c.Bot.Resolve(ctx, input)
	if err != nil {
		return followupError(s, e, "🎵 Error", resolveErrorText(err))
	}

	switch r := result.(type) {
	case track.Single:
		t := r.Track
		t.RequestedBy = user.Username
		if next {
			queue.EnqueueNext(t)
		} else {
			queue.Enqueue(t)
		}
		return command.FollowupEmbed(s, e, &discordgo.MessageEmbed{
			Title:       player.StatusAdded.StringEmoji() + " Track Added",
			Description: trackLine(t),
			Color:       command.EmbedColor,
		})

	case track.List:
		tracks := make([]track.Track, len(r.Tracks))
		for i, t := range r.Tracks {
			t.RequestedBy = user.Username
			tracks[i] = t
		}
		if next {
			queue.EnqueueManyNext(tracks)
		} else {
			queue.EnqueueMany(tracks)
		}
		return command.FollowupEmbed(s, e, &discordgo.MessageEmbed{
			Title:       player.StatusAdded.StringEmoji() + " Tracks Added",
			Description: fmt.Sprintf("%d tracks from **%s**", len(tracks), r.Title),
			Color:       command.EmbedColor,
		})

	case track.Miss:
		return followupError(s, e, "🎵 Not Found", fmt.Sprintf("Nothing playable found for **%s**.", r.Title))
	}
	return nil
}

func resolveErrorText(err error) string {
	switch {
	case errors.Is(err, sources.ErrUnsupported):
		return "That link is not supported."
	case errors.Is(err, spotify.ErrMissingCredentials):
		return "Spotify links are not configured on this bot."
	case errors.Is(err, context.DeadlineExceeded):
		return "Looking that up took too long."
	default:
		return fmt.Sprintf("Failed to resolve track: %v", err)
	}
}

func (c *MusicCommand) runSimple(s *discordgo.Session, e *discordgo.InteractionCreate, op func() error, status player.PlayerStatus) error {
	if err := op(); err != nil {
		return reply(s, e, errorText(err))
	}
	return statusReply(s, e, status, "")
}

func (c *MusicCommand) runRemove(s *discordgo.Session, e *discordgo.InteractionCreate, position int) error {
	t, err := c.Bot.Queue(e.GuildID).RemoveAt(position)
	if err != nil {
		return reply(s, e, errorText(err))
	}
	return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "🗑 Removed " + trackLine(t),
		Color:       command.EmbedColor,
	})
}

func (c *MusicCommand) runSetVolume(s *discordgo.Session, e *discordgo.InteractionCreate, st *storage.Storage, log zerolog.Logger, v float64) error {
	v = c.Bot.Queue(e.GuildID).SetVolume(v)
	rememberVolume(st, log, e.GuildID, v)
	return reply(s, e, fmt.Sprintf("🔊 Volume set to %d%%.", percent(v)))
}

type volumeStore interface {
	SetVolume(guildID string, v float64) error
}

func rememberVolume(st *storage.Storage, log zerolog.Logger, guildID string, v float64) {
	if st != nil {
		saveVolume(st, log, guildID, v)
	}
}

// saveVolume persists v. A failure is logged only, the live volume is
// already applied.
func saveVolume(st volumeStore, log zerolog.Logger, guildID string, v float64) {
	if err := st.SetVolume(guildID, v); err != nil {
		log.Warn().Err(err).Str("guild", guildID).Float64("volume", v).Msg("save volume")
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, player.ErrNoTrackPlaying):
		return "Nothing is playing."
	case errors.Is(err, player.ErrNotFound):
		return "There is no track at that position."
	case errors.Is(err, player.ErrClosed):
		return "The player is shutting down."
	default:
		return err.Error()
	}
}

func reply(s *discordgo.Session, e *discordgo.InteractionCreate, text string) error {
	return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: text,
		Color:       command.EmbedColor,
	})
}

func statusReply(s *discordgo.Session, e *discordgo.InteractionCreate, status player.PlayerStatus, text string) error {
	return command.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Title:       status.StringEmoji() + " " + string(status),
		Description: text,
		Color:       command.EmbedColor,
	})
}

func followupError(s *discordgo.Session, e *discordgo.InteractionCreate, title, text string) error {
	return command.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       title,
		Description: text,
		Color:       command.EmbedColor,
	})
}
