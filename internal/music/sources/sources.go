package sources

import (
	"errors"
	"regexp"
	"strings"
)

// Kind tells the resolver which provider owns an input.
type Kind int

const (
	KindQuery Kind = iota
	KindPrimaryLink
	KindSecondaryLink
)

func (k Kind) String() string {
	switch k {
	case KindPrimaryLink:
		return "youtube"
	case KindSecondaryLink:
		return "spotify"
	default:
		return "query"
	}
}

// ErrUnsupported is returned for inputs no provider can turn into a track.
var ErrUnsupported = errors.New("unsupported source")

var (
	primaryLink   = regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.|music\.)?(youtube\.com|youtu\.be)/\S+`)
	secondaryLink = regexp.MustCompile(`(?i)^(https?://)?(open\.)?spotify\.com/\S+`)
)

// Input is a classified user string.
type Input struct {
	Kind  Kind
	Value string
}

// Classify trims raw and sorts it into exactly one Kind. It never fails;
// anything that is not a recognised link is treated as a search query.
func Classify(raw string) Input {
	v := strings.TrimSpace(raw)
	switch {
	case primaryLink.MatchString(v):
		return Input{Kind: KindPrimaryLink, Value: v}
	case secondaryLink.MatchString(v):
		return Input{Kind: KindSecondaryLink, Value: v}
	default:
		return Input{Kind: KindQuery, Value: v}
	}
}
