package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/command/music"
	musicplayer "github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
)

var errNotInVoice = errors.New("user not in any voice channel")

// newQueue is the registry factory. The remembered volume is restored and
// a watcher posts playback notices for the guild.
func (b *Bot) newQueue(guildID string) *musicplayer.GuildQueue {
	volume := b.rememberedVolume(guildID)

	q := musicplayer.NewGuildQueue(musicplayer.Options{
		GuildID:  guildID,
		Joiner:   b.joiner,
		Player:   stream.NewPlayer(b.log.With().Str("guild", guildID).Logger()),
		Builder:  b.builder,
		Metadata: b.metadata,
		Volume:   volume,
		Logger:   b.log,
	})

	err := b.jobs.StartAsync("announce:"+guildID, func(ctx context.Context) error {
		b.watchNotifications(ctx, q)
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("start notification watcher")
	}
	return q
}

// rememberedVolume is nil when the guild never set one.
func (b *Bot) rememberedVolume(guildID string) *float64 {
	if b.storage == nil {
		return nil
	}
	v, ok, err := b.storage.Volume(guildID)
	switch {
	case err != nil:
		b.log.Warn().Err(err).Str("guild", guildID).Msg("load volume")
		return nil
	case !ok:
		return nil
	}
	return &v
}

func (b *Bot) watchNotifications(ctx context.Context, q *musicplayer.GuildQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.Done():
			return
		case status := <-q.Notifications():
			b.announceStatus(q, status)
		}
	}
}

// announceStatus posts the statuses no command reply covers: a new track
// starting, a track given up on and a lost voice connection.
func (b *Bot) announceStatus(q *musicplayer.GuildQueue, status musicplayer.PlayerStatus) {
	channelID := b.announceChannel(q.GuildID())
	if channelID == "" {
		return
	}

	msg := &discordgo.MessageSend{}
	switch status {
	case musicplayer.StatusPlaying:
		snap := q.Snapshot()
		msg.Embeds = []*discordgo.MessageEmbed{music.NowPlayingEmbed(snap)}
		msg.Components = music.NowPlayingButtons(snap)
	case musicplayer.StatusError:
		msg.Embeds = []*discordgo.MessageEmbed{{
			Title:       status.StringEmoji() + " Playback Error",
			Description: "The track could not be played and was skipped.",
			Color:       command.EmbedColor,
		}}
	case musicplayer.StatusDisconnected:
		msg.Embeds = []*discordgo.MessageEmbed{{
			Title:       status.StringEmoji() + " " + string(status),
			Description: "Lost the voice connection. The queue is kept, use `/music play` to rejoin.",
			Color:       command.EmbedColor,
		}}
	default:
		return
	}

	if _, err := b.dg.ChannelMessageSendComplex(channelID, msg); err != nil {
		b.log.Warn().Err(err).Str("guild", q.GuildID()).Str("channel", channelID).Msg("announce")
	}
}

// Queue returns the playback queue of a guild, creating it on first use.
func (b *Bot) Queue(guildID string) *musicplayer.GuildQueue {
	return b.queues.Get(guildID)
}

func (b *Bot) Resolve(ctx context.Context, input string) (track.Result, error) {
	return b.resolver.Resolve(ctx, input)
}

// Announce remembers where playback notices for a guild should go.
func (b *Bot) Announce(guildID, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announce[guildID] = channelID
}

func (b *Bot) announceChannel(guildID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.announce[guildID]
}

// FindUserVoiceState finds the voice channel a user sits in.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*command.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &command.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, errNotInVoice
}
