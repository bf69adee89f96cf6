package music

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/keshon/songbird/internal/music/player"
	"github.com/keshon/songbird/internal/music/track"
)

const (
	barWidth       = 16
	queuePageLimit = 10
)

// progressBar draws elapsed against total. Unknown totals get an empty bar.
func progressBar(elapsed, total time.Duration) string {
	filled := 0
	if total > 0 {
		filled = int(float64(barWidth) * math.Min(1, float64(elapsed)/float64(total)))
	}
	return strings.Repeat("▬", filled) + "🔘" + strings.Repeat("▬", barWidth-filled)
}

func trackLine(t track.Track) string {
	title := t.Title
	if title == "" {
		title = t.URL
	}
	if t.IsDeferred() {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, t.URL)
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

func nowPlayingDescription(s player.Snapshot) string {
	if s.Current == nil {
		return "Nothing is playing."
	}
	elapsed := time.Duration(s.Elapsed) * time.Millisecond
	return fmt.Sprintf("%s\n\n%s\n`%s / %s` · %s · 🔊 %d%%",
		trackLine(*s.Current),
		progressBar(elapsed, s.Current.Duration),
		track.FormatDuration(elapsed), track.FormatDuration(s.Current.Duration),
		s.Status, percent(s.Volume))
}

func queueDescription(s player.Snapshot) string {
	var b strings.Builder
	if s.Current != nil {
		fmt.Fprintf(&b, "**Now:** %s\n\n", trackLine(*s.Current))
	}
	if len(s.Pending) == 0 {
		b.WriteString("The queue is empty.")
		return b.String()
	}

	var total time.Duration
	for i, t := range s.Pending {
		total += t.Duration
		if i < queuePageLimit {
			fmt.Fprintf(&b, "`%d.` %s `%s`\n", i+1, trackLine(t), track.FormatDuration(t.Duration))
		}
	}
	if extra := len(s.Pending) - queuePageLimit; extra > 0 {
		fmt.Fprintf(&b, "…and %d more\n", extra)
	}
	fmt.Fprintf(&b, "\n%d tracks · %s known", len(s.Pending), track.FormatDuration(total))
	return b.String()
}
