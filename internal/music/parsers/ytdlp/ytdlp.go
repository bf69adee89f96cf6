package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
)

// ErrNoLink means the tool ran but printed nothing usable.
var ErrNoLink = errors.New("yt-dlp returned no media url")

// YTDLP extracts direct media URLs with the yt-dlp binary.
type YTDLP struct {
	path    string
	timeout time.Duration
	log     zerolog.Logger
}

func New(path string, timeout time.Duration, log zerolog.Logger) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YTDLP{path: path, timeout: timeout, log: log.With().Str("component", "yt-dlp").Logger()}
}

// DirectLink asks for the best audio format and returns the first URL the
// tool prints. The process is killed when the timeout or ctx expires.
func (y *YTDLP) DirectLink(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	start := time.Now()
	res, err := goytdlp.New().
		SetExecutable(y.path).
		Format("bestaudio/best").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--get-url", pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("yt-dlp timed out after %s: %w", y.timeout, ctx.Err())
		}
		return "", fmt.Errorf("yt-dlp get-url error: %w", err)
	}

	link, err := FirstURL(res.Stdout)
	if err != nil {
		return "", err
	}
	y.log.Debug().Dur("took", time.Since(start)).Str("page", pageURL).Msg("direct link extracted")
	return link, nil
}

// FirstURL picks the first http(s) line of the tool output.
func FirstURL(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", ErrNoLink
}
