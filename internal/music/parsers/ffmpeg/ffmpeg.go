package ffmpeg

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

const (
	channels   = 2
	sampleRate = 48000
)

// FFMPEG decodes media to raw PCM in a child process.
type FFMPEG struct {
	path string
	log  zerolog.Logger
}

func New(path string, log zerolog.Logger) *FFMPEG {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFMPEG{path: path, log: log.With().Str("component", "ffmpeg").Logger()}
}

func outputArgs() []string {
	return []string{
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// start launches the decoder and returns its stdout together with a
// cleanup that kills and reaps the process exactly once.
func (f *FFMPEG) start(cmd *exec.Cmd) (io.ReadCloser, func(), error) {
	cmd.Stderr = f.log.Level(zerolog.WarnLevel)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("command start error: %w", err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		})
	}

	return reader, cleanup, nil
}
