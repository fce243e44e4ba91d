package proxy

import (
	"context"
	"io"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/relay"
	"github.com/papercomputeco/quill/pkg/upstream"
	"github.com/papercomputeco/quill/pkg/verify"
)

// Upstream opens a streamed chat completion. *upstream.Client implements it.
type Upstream interface {
	Open(ctx context.Context, req *llm.ChatRequest, opts ...upstream.RequestOption) (io.ReadCloser, error)
}

// Config is the generation server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Upstream is the provider generations are streamed from. Required.
	Upstream Upstream

	// Verifier gates every generation request. Defaults to verify.Nop.
	Verifier verify.Verifier

	// Publisher announces stored generations. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Instance names this server in published events.
	Instance string

	// Settings are the initial relay and model settings. They can be
	// replaced at runtime with Proxy.Reload.
	Settings Settings
}

// Settings are the parts of the configuration that can change while the
// server runs. A request takes one snapshot when it starts and keeps it
// until its stream ends.
type Settings struct {
	Relay  relay.Config
	Prompt prompt.Options
}
