package music

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/stream"
)

const (
	buttonPause   = "music:pause"
	buttonResume  = "music:resume"
	buttonSkip    = "music:skip"
	buttonVolDown = "music:voldown"
	buttonVolUp   = "music:volup"
)

// NowPlayingEmbed renders a snapshot for the now playing message.
func NowPlayingEmbed(s player.Snapshot) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       player.StatusPlaying.StringEmoji() + " Now Playing",
		Description: nowPlayingDescription(s),
		Color:       command.EmbedColor,
	}
	if s.Current != nil && s.Current.RequestedBy != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + s.Current.RequestedBy}
	}
	return embed
}

// NowPlayingButtons returns playback controls for a snapshot.
func NowPlayingButtons(s player.Snapshot) []discordgo.MessageComponent {
	toggle := discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏸"}, Style: discordgo.SecondaryButton, CustomID: buttonPause}
	if s.Status == stream.StatusPaused {
		toggle = discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "▶️"}, Style: discordgo.SuccessButton, CustomID: buttonResume}
	}
	idle := s.Current == nil
	toggle.Disabled = idle

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			toggle,
			discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏭"}, Style: discordgo.SecondaryButton, CustomID: buttonSkip, Disabled: idle},
			discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "🔉"}, Style: discordgo.SecondaryButton, CustomID: buttonVolDown, Disabled: s.Volume <= player.MinVolume},
			discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "🔊"}, Style: discordgo.SecondaryButton, CustomID: buttonVolUp, Disabled: s.Volume >= player.MaxVolume},
		}},
	}
}

func (c *MusicCommand) runNowPlaying(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	snap := c.Bot.Queue(e.GuildID).Snapshot()
	return command.RespondEmbedWithComponents(s, e, NowPlayingEmbed(snap), NowPlayingButtons(snap))
}

// Component handles the now playing buttons and redraws the message.
func (c *MusicCommand) Component(ctx *command.ComponentInteractionContext) error {
	e := ctx.Event
	queue := c.Bot.Queue(e.GuildID)

	id := e.MessageComponentData().CustomID
	switch id {
	case buttonPause:
		_ = queue.Pause()
	case buttonResume:
		_ = queue.Resume()
	case buttonSkip:
		_ = queue.Skip()
	case buttonVolDown:
		rememberVolume(ctx.Storage, ctx.Log, e.GuildID, queue.VolDown())
	case buttonVolUp:
		rememberVolume(ctx.Storage, ctx.Log, e.GuildID, queue.VolUp())
	default:
		if !strings.HasPrefix(id, c.Name()+":") {
			return nil
		}
	}

	snap := queue.Snapshot()
	return command.UpdateMessage(ctx.Session, e, NowPlayingEmbed(snap), NowPlayingButtons(snap))
}
