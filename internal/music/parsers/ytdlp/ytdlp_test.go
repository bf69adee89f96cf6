package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstURL(t *testing.T) {
	got, err := FirstURL("\n  https://rr1.googlevideo.com/videoplayback?x=1\nhttps://second\n")
	require.NoError(t, err)
	assert.Equal(t, "https://rr1.googlevideo.com/videoplayback?x=1", got)

	got, err = FirstURL("WARNING: something\nhttp://plain/stream.mp3")
	require.NoError(t, err)
	assert.Equal(t, "http://plain/stream.mp3", got)

	_, err = FirstURL("")
	assert.ErrorIs(t, err, ErrNoLink)
	_, err = FirstURL("ERROR: private video")
	assert.ErrorIs(t, err, ErrNoLink)
}
