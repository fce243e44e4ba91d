package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned for a generation kind quill has no template for.
var ErrUnknownKind = errors.New("unknown generation kind")

// Kind names a generation endpoint.
type Kind string

const (
	KindStory     Kind = "story"
	KindFanfic    Kind = "fanfic"
	KindPoem      Kind = "poem"
	KindPlot      Kind = "plot"
	KindBackstory Kind = "backstory"
	KindTitles    Kind = "titles"
)

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindStory, KindFanfic, KindPoem, KindPlot, KindBackstory, KindTitles}
}

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	return string(k)
}
