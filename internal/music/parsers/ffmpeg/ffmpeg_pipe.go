package ffmpeg

import (
	"io"
	"os/exec"
)

// DecodeStream decodes whatever container src carries. src is closed by
// the returned cleanup.
func (f *FFMPEG) DecodeStream(src io.ReadCloser) (io.ReadCloser, func(), error) {
	args := []string{"-i", "pipe:0"}
	cmd := exec.Command(f.path, append(args, outputArgs()...)...)
	cmd.Stdin = src

	reader, stop, err := f.start(cmd)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		src.Close()
		stop()
	}
	return reader, cleanup, nil
}
