package discord

import (
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/songbird/datastore"
	"github.com/keshon/songbird/internal/config"
	"github.com/keshon/songbird/internal/storage"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	s := &discordgo.Session{State: discordgo.NewState()}
	b := newBot(s, Options{
		Config: &config.Config{DiscordGuildBlacklist: []string{"bad"}},
		Logger: zerolog.Nop(),
	})
	t.Cleanup(b.stopJobs)
	return b
}

func TestRememberedVolumeKeepsMute(t *testing.T) {
	b := newTestBot(t)
	assert.Nil(t, b.rememberedVolume("g1"))

	ds, err := datastore.New(filepath.Join(t.TempDir(), "datastore.json"))
	require.NoError(t, err)
	st := storage.New(ds)
	t.Cleanup(func() { st.Close() })
	b.storage = st

	assert.Nil(t, b.rememberedVolume("g1"))

	require.NoError(t, st.SetVolume("g1", 0))
	v := b.rememberedVolume("g1")
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)
}

func TestHashCommandIgnoresOptionOrder(t *testing.T) {
	a := &discordgo.ApplicationCommand{Name: "music", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "play", Description: "p"},
		{Name: "stop", Description: "s"},
	}}
	b := &discordgo.ApplicationCommand{Name: "music", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "stop", Description: "s"},
		{Name: "play", Description: "p"},
	}}
	assert.Equal(t, hashCommand(a), hashCommand(b))

	b.Options[0].Description = "changed"
	assert.NotEqual(t, hashCommand(a), hashCommand(b))
}

func TestPlanSync(t *testing.T) {
	ping := &discordgo.ApplicationCommand{Name: "ping", Description: "pong"}
	music := &discordgo.ApplicationCommand{Name: "music", Description: "play"}
	history := &discordgo.ApplicationCommand{Name: "history", Description: "recent"}

	remote := []*discordgo.ApplicationCommand{
		{ID: "1", Name: "ping"},
		{ID: "2", Name: "music"},
		{ID: "3", Name: "old"},
	}
	cached := map[string]string{
		"ping":    hashCommand(ping),
		"music":   "stale",
		"history": hashCommand(history),
	}

	p := planSync([]*discordgo.ApplicationCommand{ping, music, history}, remote, cached)

	require.Len(t, p.remove, 1)
	assert.Equal(t, "old", p.remove[0].Name)

	var upserted []string
	for _, d := range p.upsert {
		upserted = append(upserted, d.Name)
	}
	// history is cached but missing remotely
	assert.ElementsMatch(t, []string{"music", "history"}, upserted)
	assert.Equal(t, hashCommand(music), p.hashes["music"])
	assert.Len(t, p.hashes, 3)
}

func TestCommandDefinitionsLookThroughMiddleware(t *testing.T) {
	b := newTestBot(t)

	var names []string
	for _, d := range b.commandDefinitions() {
		names = append(names, d.Name)
		assert.Equal(t, discordgo.ChatApplicationCommand, d.Type)
	}
	assert.Equal(t, []string{"help", "history", "music", "ping"}, names)
}

func TestFindUserVoiceState(t *testing.T) {
	b := newTestBot(t)
	require.NoError(t, b.dg.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "u1", ChannelID: "v1", GuildID: "g1"},
		},
	}))

	vs, err := b.FindUserVoiceState("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", vs.ChannelID)

	_, err = b.FindUserVoiceState("g1", "u2")
	assert.ErrorIs(t, err, errNotInVoice)

	_, err = b.FindUserVoiceState("missing", "u1")
	assert.Error(t, err)
}

func TestAnnounceChannel(t *testing.T) {
	b := newTestBot(t)
	assert.Empty(t, b.announceChannel("g1"))

	b.Announce("g1", "c1")
	b.Announce("g1", "c2")
	assert.Equal(t, "c2", b.announceChannel("g1"))
}

func TestBlacklist(t *testing.T) {
	b := newTestBot(t)
	assert.True(t, b.isGuildBlacklisted("bad"))
	assert.False(t, b.isGuildBlacklisted("good"))
}
