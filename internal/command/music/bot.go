package music

import (
	"context"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/track"
)

// Bot is what music commands need from the running bot.
type Bot interface {
	Queue(guildID string) *player.GuildQueue
	Resolve(ctx context.Context, input string) (track.Result, error)
	FindUserVoiceState(guildID, userID string) (*command.VoiceState, error)
	// Announce makes playback notices for the guild go to channelID.
	Announce(guildID, channelID string)
}
