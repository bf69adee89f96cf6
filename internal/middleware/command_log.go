package middleware

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/songbird/internal/command"
	"github.com/keshon/songbird/internal/storage"
	"github.com/keshon/songbird/pkg/cmd"
)

// WithCommandLogger logs every slash invocation and keeps it in the guild's
// command history. Component presses are not recorded.
func WithCommandLogger() cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			slash, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return next.Run(ctx, inv)
			}

			start := time.Now()
			err := next.Run(ctx, inv)
			record(slash.Log, slash.Session, slash.Event, slash.Storage, next.Name(), time.Since(start), err)
			return err
		})
	}
}

func record(log zerolog.Logger, s *discordgo.Session, e *discordgo.InteractionCreate, st *storage.Storage, name string, took time.Duration, err error) {
	user := command.User(e)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("command", name).
		Str("guild", e.GuildID).
		Str("channel", e.ChannelID).
		Str("user", user.Username).
		Dur("took", took).
		Msg("command")

	if st == nil || e.GuildID == "" {
		return
	}

	rec := storage.CommandHistoryRecord{
		ChannelID: e.ChannelID,
		UserID:    user.ID,
		Username:  user.Username,
		Command:   name,
		Datetime:  time.Now(),
	}
	if s != nil && s.State != nil {
		if ch, err := s.State.Channel(e.ChannelID); err == nil {
			rec.ChannelName = ch.Name
		}
		if g, err := s.State.Guild(e.GuildID); err == nil {
			rec.GuildName = g.Name
		}
	}
	if err := st.AppendCommandToHistory(e.GuildID, rec); err != nil {
		log.Warn().Err(err).Str("guild", e.GuildID).Msg("save command history")
	}
}
