// /internal/music/voice/discord.go
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

var (
	ErrNotReady    = errors.New("voice connection not ready")
	ErrSendTimeout = errors.New("voice send timed out")
)

const (
	pollInterval = 250 * time.Millisecond
	sendTimeout  = time.Second
)

// Manager joins voice channels through a discordgo session and maps gateway
// events onto each connection's Machine.
type Manager struct {
	s   *discordgo.Session
	log zerolog.Logger

	mu    sync.Mutex
	conns map[string]*discordConn // by guild
}

func NewManager(s *discordgo.Session, log zerolog.Logger) *Manager {
	m := &Manager{
		s:     s,
		log:   log.With().Str("component", "voice").Logger(),
		conns: make(map[string]*discordConn),
	}
	s.AddHandler(m.onVoiceStateUpdate)
	s.AddHandler(m.onVoiceServerUpdate)
	return m
}

// Join starts connecting and returns at once; callers wait on the
// returned Conn for StatusReady.
func (m *Manager) Join(guildID, channelID string) (Conn, error) {
	if guildID == "" || channelID == "" {
		return nil, fmt.Errorf("join: guild and channel are required")
	}

	c := &discordConn{
		Machine:   NewMachine(),
		guildID:   guildID,
		channelID: channelID,
		log:       m.log.With().Str("guild", guildID).Str("channel", channelID).Logger(),
		release:   m.release,
	}

	m.mu.Lock()
	prev := m.conns[guildID]
	m.conns[guildID] = c
	m.mu.Unlock()
	if prev != nil {
		prev.Destroy()
	}

	go c.connect(m.s)
	return c, nil
}

func (m *Manager) release(c *discordConn) {
	m.mu.Lock()
	if m.conns[c.guildID] == c {
		delete(m.conns, c.guildID)
	}
	m.mu.Unlock()
}

func (m *Manager) conn(guildID string) *discordConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[guildID]
}

func (m *Manager) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || s.State == nil || s.State.User == nil || vs.UserID != s.State.User.ID {
		return
	}
	c := m.conn(vs.GuildID)
	if c == nil {
		return
	}

	if vs.ChannelID == "" {
		if c.Status() == StatusReady {
			c.log.Warn().Msg("removed from voice channel")
			c.Set(StatusDisconnected)
		}
		return
	}

	c.setChannel(vs.ChannelID)
	if c.Status() == StatusDisconnected {
		c.Set(StatusSignalling)
	}
}

func (m *Manager) onVoiceServerUpdate(_ *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
	c := m.conn(vs.GuildID)
	if c == nil {
		return
	}
	switch c.Status() {
	case StatusDisconnected, StatusSignalling:
		c.Set(StatusConnecting)
	}
}

type discordConn struct {
	*Machine

	guildID string
	log     zerolog.Logger
	release func(*discordConn)

	mu        sync.RWMutex
	channelID string
	vc        *discordgo.VoiceConnection
	once      sync.Once
}

func (c *discordConn) ChannelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channelID
}

func (c *discordConn) setChannel(id string) {
	c.mu.Lock()
	c.channelID = id
	c.mu.Unlock()
}

func (c *discordConn) connect(s *discordgo.Session) {
	c.Set(StatusConnecting)

	vc, err := s.ChannelVoiceJoin(c.guildID, c.ChannelID(), false, true)
	if err != nil {
		c.log.Error().Err(err).Msg("voice join failed")
		if vc != nil {
			_ = vc.Disconnect()
		}
		c.Destroy()
		return
	}

	c.mu.Lock()
	c.vc = vc
	c.mu.Unlock()

	select {
	case <-c.Done():
		_ = vc.Disconnect()
		return
	default:
	}

	c.Set(StatusReady)
	c.log.Info().Msg("voice ready")
	c.watch(vc)
}

// watch mirrors the session's Ready flag until the connection is destroyed.
func (c *discordConn) watch(vc *discordgo.VoiceConnection) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
		}

		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()

		switch st := c.Status(); {
		case !ready && st == StatusReady:
			c.log.Warn().Msg("voice link dropped")
			c.Set(StatusDisconnected)
		case ready && st != StatusReady:
			c.log.Info().Str("from", st.String()).Msg("voice link back")
			c.Set(StatusReady)
		}
	}
}

func (c *discordConn) voice() *discordgo.VoiceConnection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vc
}

func (c *discordConn) SendOpus(frame []byte) error {
	vc := c.voice()
	if vc == nil || c.Status() != StatusReady {
		return ErrNotReady
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	select {
	case vc.OpusSend <- frame:
		return nil
	case <-c.Done():
		return ErrDestroyed
	case <-ctx.Done():
		return ErrSendTimeout
	}
}

func (c *discordConn) Speaking(speaking bool) error {
	vc := c.voice()
	if vc == nil {
		return ErrNotReady
	}
	return vc.Speaking(speaking)
}

// Destroy leaves the channel and makes the connection terminal.
func (c *discordConn) Destroy() {
	c.once.Do(func() {
		c.Set(StatusDestroyed)
		if vc := c.voice(); vc != nil {
			if err := vc.Disconnect(); err != nil {
				c.log.Debug().Err(err).Msg("disconnect")
			}
		}
		if c.release != nil {
			c.release(c)
		}
		c.log.Info().Msg("voice destroyed")
	})
}
