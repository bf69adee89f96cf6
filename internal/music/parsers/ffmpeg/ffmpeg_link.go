package ffmpeg

import (
	"io"
	"os/exec"
)

// DecodeURL reads a remote media URL. The demuxer reconnects on stream
// errors and on a premature EOF, which covers most upstream hiccups.
func (f *FFMPEG) DecodeURL(link string) (io.ReadCloser, func(), error) {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_at_eof", "1",
		"-reconnect_on_network_error", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
	}
	cmd := exec.Command(f.path, append(args, outputArgs()...)...)
	return f.start(cmd)
}
