// /internal/config/config.go
package config

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	StoragePath           string   `env:"STORAGE_PATH" envDefault:"datastore.json"`

	YtDlpPath      string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath     string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	ExtractTimeout time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"15s"`
	Proxy          string        `env:"PROXY"`
	SearchWorkers  int           `env:"SEARCH_WORKERS" envDefault:"4"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyMarket       string `env:"SPOTIFY_MARKET" envDefault:"US"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// LoadDotEnv reads .env into the process environment. It reports whether a
// file was found; a missing file is not an error.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// New parses the environment into a Config and validates it.
func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrMissingToken
	}
	if c.SearchWorkers < 1 {
		c.SearchWorkers = 1
	}
	return nil
}

func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func Get(key string) string {
	return os.Getenv(key)
}
