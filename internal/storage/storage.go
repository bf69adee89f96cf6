// /internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/keshon/songbird/datastore"
)

const commandHistoryLimit int = 20

type Storage struct {
	// serializes read-modify-write of guild records
	mu sync.Mutex
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	Volume              *float64               `json:"volume,omitempty"`
	CommandHashes       map[string]string      `json:"cmd_hashes,omitempty"`
}

func New(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return &record, nil
}

func (s *Storage) update(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	fn(record)
	return s.ds.Put(guildID, record)
}

// AppendCommandToHistory keeps the last commandHistoryLimit commands per guild.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistoryList = append(r.CommandsHistoryList, command)
		if n := len(r.CommandsHistoryList); n > commandHistoryLimit {
			r.CommandsHistoryList = r.CommandsHistoryList[n-commandHistoryLimit:]
		}
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// Volume returns the remembered playback volume for a guild, and false when
// none was saved.
func (s *Storage) Volume(guildID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil || record.Volume == nil {
		return 0, false, err
	}
	return *record.Volume, true, nil
}

func (s *Storage) SetVolume(guildID string, v float64) error {
	return s.update(guildID, func(r *Record) {
		r.Volume = &v
	})
}

// CommandHashes returns the slash definition hashes last registered for a
// guild, keyed by command name.
func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(record.CommandHashes))
	for k, v := range record.CommandHashes {
		hashes[k] = v
	}
	return hashes, nil
}

func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) {
		r.CommandHashes = hashes
	})
}
