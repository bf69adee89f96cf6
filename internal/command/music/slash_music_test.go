package music

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/sources"
	"github.com/keshon/songbird/internal/music/sources/spotify"
	"github.com/keshon/songbird/internal/music/stream"
	"github.com/keshon/songbird/internal/music/track"
)

func TestResolveErrorText(t *testing.T) {
	assert.Equal(t, "That link is not supported.", resolveErrorText(fmt.Errorf("x: %w", sources.ErrUnsupported)))
	assert.Equal(t, "Spotify links are not configured on this bot.", resolveErrorText(spotify.ErrMissingCredentials))
	assert.Equal(t, "Looking that up took too long.", resolveErrorText(context.DeadlineExceeded))
	assert.Equal(t, "Failed to resolve track: boom", resolveErrorText(errors.New("boom")))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Nothing is playing.", errorText(player.ErrNoTrackPlaying))
	assert.Equal(t, "There is no track at that position.", errorText(player.ErrNotFound))
	assert.Equal(t, "boom", errorText(errors.New("boom")))
}

func buttons(t *testing.T, comps []discordgo.MessageComponent) []discordgo.Button {
	t.Helper()
	require.Len(t, comps, 1)
	row, ok := comps[0].(discordgo.ActionsRow)
	require.True(t, ok)
	out := make([]discordgo.Button, 0, len(row.Components))
	for _, c := range row.Components {
		b, ok := c.(discordgo.Button)
		require.True(t, ok)
		out = append(out, b)
	}
	return out
}

func TestNowPlayingButtons(t *testing.T) {
	idle := buttons(t, NowPlayingButtons(player.Snapshot{Volume: 1}))
	require.Len(t, idle, 4)
	assert.True(t, idle[0].Disabled)
	assert.True(t, idle[1].Disabled)
	assert.False(t, idle[2].Disabled)

	cur := &track.Track{Title: "Song", URL: "https://youtu.be/x", RequestedBy: "ann"}
	paused := buttons(t, NowPlayingButtons(player.Snapshot{Current: cur, Status: stream.StatusPaused, Volume: player.MaxVolume}))
	assert.Equal(t, buttonResume, paused[0].CustomID)
	assert.False(t, paused[0].Disabled)
	assert.True(t, paused[3].Disabled)

	playing := buttons(t, NowPlayingButtons(player.Snapshot{Current: cur, Status: stream.StatusPlaying, Volume: player.MinVolume}))
	assert.Equal(t, buttonPause, playing[0].CustomID)
	assert.True(t, playing[2].Disabled)

	embed := NowPlayingEmbed(player.Snapshot{Current: cur})
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Requested by ann", embed.Footer.Text)
}

func TestSlashDefinitionHasEverySubcommand(t *testing.T) {
	def := (&MusicCommand{}).SlashDefinition()
	var names []string
	for _, o := range def.Options {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"play", "next", "stop", "pause", "resume", "now", "queue", "remove", "clear", "volume"}, names)
}

type failingVolumeStore struct{ err error }

func (f failingVolumeStore) SetVolume(string, float64) error { return f.err }

func TestSaveVolumeLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	saveVolume(failingVolumeStore{}, log, "g1", 0.5)
	assert.Empty(t, buf.String())

	saveVolume(failingVolumeStore{err: errors.New("disk full")}, log, "g1", 0.5)
	assert.Contains(t, buf.String(), `"message":"save volume"`)
	assert.Contains(t, buf.String(), `"error":"disk full"`)
	assert.Contains(t, buf.String(), `"guild":"g1"`)
}
