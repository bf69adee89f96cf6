package middleware

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/songbird/datastore"
	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/storage"
	"github.com/keshon/songbird/pkg/cmd"
)

type probe struct {
	runs int
	err  error
}

func (p *probe) Name() string        { return "probe" }
func (p *probe) Description() string { return "probe" }
func (p *probe) Run(context.Context, *cmd.Invocation) error {
	p.runs++
	return p.err
}

func interaction(guildID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		GuildID:   guildID,
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "ann"}},
	}}
}

func TestGuildOnlyPassesNonDiscordInvocations(t *testing.T) {
	p := &probe{}
	c := cmd.Apply(p, WithGuildOnly())

	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{}))
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{
		Data: &command.SlashInteractionContext{Event: interaction("g1")},
	}))
	assert.Equal(t, 2, p.runs)
}

func TestCommandLoggerRecordsHistory(t *testing.T) {
	ds, err := datastore.New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	st := storage.New(ds)
	defer st.Close()

	p := &probe{}
	c := cmd.Apply(p, WithCommandLogger())

	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{
		Data: &command.SlashInteractionContext{Event: interaction("g1"), Storage: st, Log: zerolog.Nop()},
	}))
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{
		Data: &command.ComponentInteractionContext{Event: interaction("g1"), Storage: st, Log: zerolog.Nop()},
	}))
	assert.Equal(t, 2, p.runs)

	history, err := st.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "probe", history[0].Command)
	assert.Equal(t, "ann", history[0].Username)
	assert.Equal(t, "c1", history[0].ChannelID)
}
