package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPromptLength bounds the free-form prompt, in characters.
	MaxPromptLength = 4000

	// DefaultTitleCount is used when a titles request does not ask for a count.
	DefaultTitleCount = 5

	// MaxTitleCount bounds the number of titles one request may ask for.
	MaxTitleCount = 20
)

// Lengths accepted in Input.Length.
var lengths = map[string]string{
	"short":  "under 300 words",
	"medium": "about 800 words",
	"long":   "about 2000 words",
}

// Input is the form payload the generation endpoints accept.
type Input struct {
	Prompt     string `json:"prompt"`
	Genre      string `json:"genre,omitempty"`
	Tone       string `json:"tone,omitempty"`
	Length     string `json:"length,omitempty"`
	Characters string `json:"characters,omitempty"`
	Fandom     string `json:"fandom,omitempty"`
	Style      string `json:"style,omitempty"`
	Count      int    `json:"count,omitempty"`

	// Token is the human-verification token issued to the browser. It is
	// checked by the server before a prompt is built and never reaches the
	// template.
	Token string `json:"token,omitempty"`
}

// InvalidInputError reports a form field that cannot be used for a kind.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// normalize trims every field, applies defaults and validates the result
// against the requirements of kind.
func (in Input) normalize(kind Kind) (Input, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Tone = strings.TrimSpace(in.Tone)
	in.Length = strings.ToLower(strings.TrimSpace(in.Length))
	in.Characters = strings.TrimSpace(in.Characters)
	in.Fandom = strings.TrimSpace(in.Fandom)
	in.Style = strings.TrimSpace(in.Style)

	if in.Prompt == "" {
		return in, &InvalidInputError{Field: "prompt", Reason: "is required"}
	}
	if utf8.RuneCountInString(in.Prompt) > MaxPromptLength {
		return in, &InvalidInputError{Field: "prompt", Reason: fmt.Sprintf("exceeds %d characters", MaxPromptLength)}
	}

	if in.Length == "" {
		in.Length = "medium"
	}
	if _, ok := lengths[in.Length]; !ok {
		return in, &InvalidInputError{Field: "length", Reason: "must be short, medium or long"}
	}

	switch kind {
	case KindFanfic:
		if in.Fandom == "" {
			return in, &InvalidInputError{Field: "fandom", Reason: "is required for fanfic"}
		}
	case KindTitles:
		if in.Count == 0 {
			in.Count = DefaultTitleCount
		}
		if in.Count < 1 || in.Count > MaxTitleCount {
			return in, &InvalidInputError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", MaxTitleCount)}
		}
	}

	return in, nil
}
