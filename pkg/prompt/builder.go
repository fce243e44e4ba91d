// Package prompt turns a generation form into the chat completion request
// sent upstream. Each Kind has its own user-message template; all kinds share
// one system message.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/papercomputeco/quill/pkg/llm"
)

// Options are the model settings applied to every built request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Builder renders prompts. It is safe for concurrent use.
type Builder struct {
	opts      Options
	templates map[Kind]*template.Template
}

// NewBuilder parses the per-kind templates. It panics if a built-in template
// does not parse, which can only happen through a programming error.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		opts:      opts,
		templates: make(map[Kind]*template.Template, len(userTemplates)),
	}
	for kind, text := range userTemplates {
		b.templates[kind] = template.Must(template.New(string(kind)).Option("missingkey=error").Parse(text))
	}
	return b
}

// templateData is what the user templates see.
type templateData struct {
	Input
	Words string
}

// Build validates in for kind and renders the streaming chat request.
func (b *Builder) Build(kind Kind, in Input) (*llm.ChatRequest, error) {
	tmpl, ok := b.templates[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	in, err := in.normalize(kind)
	if err != nil {
		return nil, err
	}

	var user strings.Builder
	if err := tmpl.Execute(&user, templateData{Input: in, Words: lengths[in.Length]}); err != nil {
		return nil, fmt.Errorf("rendering %s prompt: %w", kind, err)
	}

	req := &llm.ChatRequest{
		Model: b.opts.Model,
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, system),
			llm.NewTextMessage(llm.RoleUser, user.String()),
		},
		Stream: true,
	}
	if b.opts.MaxTokens > 0 {
		maxTokens := b.opts.MaxTokens
		req.MaxTokens = &maxTokens
	}
	if b.opts.Temperature > 0 {
		temperature := b.opts.Temperature
		req.Temperature = &temperature
	}

	return req, nil
}
