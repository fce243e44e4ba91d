// Package upstream opens streamed chat completions against an
// OpenAI-compatible provider and classifies everything that can go wrong
// before the first byte of the stream arrives.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/quill/pkg/llm"
)

const (
	// DefaultBaseURL is OpenAI's v1 API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultPath is appended to the base URL for chat completions.
	DefaultPath = "/chat/completions"

	// DefaultIdleTimeout is used when Config.IdleTimeout is zero.
	DefaultIdleTimeout = 60 * time.Second

	maxRejectionBody = 4 * 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the provider's API root (e.g., "https://openrouter.ai/api/v1").
	BaseURL string

	// Path is the chat completions path below BaseURL.
	Path string

	// APIKey is sent as a bearer token. An empty key makes every Open fail
	// with a *ConfigurationError.
	APIKey string

	// IdleTimeout cancels a stream that goes quiet for this long. A negative
	// value disables it.
	IdleTimeout time.Duration

	// Headers are static headers added to every request, e.g. the
	// HTTP-Referer and X-Title attribution headers OpenRouter asks for.
	Headers map[string]string
}

// Client opens upstream streams. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client.
func New(config Config, logger *slog.Logger, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}

	c := &Client{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			// No overall timeout: a generation may stream for minutes. Stalls
			// are caught by the idle timeout instead.
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 2 * time.Minute,
				ForceAttemptHTTP2:     true,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the chat completions endpoint.
func (c *Client) URL() string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + c.config.Path
}

// RequestOption adjusts one outbound request.
type RequestOption func(*http.Request)

// WithHeader copies h onto the outbound request. Headers the client sets
// itself (authorization, content negotiation) are not overridden.
func WithHeader(h http.Header) RequestOption {
	return func(req *http.Request) {
		for k, v := range h {
			if req.Header.Get(k) == "" {
				req.Header[k] = v
			}
		}
	}
}

// Open sends req and returns the streamed response body once the upstream
// has accepted it. The caller must close the body; closing it, or cancelling
// ctx, aborts the upstream request.
//
// Errors are one of *ConfigurationError, *DialError, *RejectionError or
// ErrMissingBody, all returned before any stream byte was consumed.
func (c *Client) Open(ctx context.Context, req *llm.ChatRequest, opts ...RequestOption) (io.ReadCloser, error) {
	if c.config.APIKey == "" {
		return nil, &ConfigurationError{Reason: "no API key configured"}
	}
	if req == nil {
		return nil, &ConfigurationError{Reason: "no request to send"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("encoding request: %v", err)}
	}

	ctx, cancel := context.WithCancel(ctx)

	url := c.URL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &ConfigurationError{Reason: fmt.Sprintf("building request for %s: %v", url, err)}
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for _, opt := range opts {
		opt(httpReq)
	}

	c.logger.Debug("opening upstream stream",
		"url", url,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &DialError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectionBody))
		resp.Body.Close()
		cancel()

		rejection := &RejectionError{Status: resp.StatusCode, Body: string(data)}
		c.logger.Warn("upstream rejected request",
			"status", resp.StatusCode,
			"message", rejection.Message(),
		)
		return nil, rejection
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, ErrMissingBody
	}

	if c.config.IdleTimeout < 0 {
		return &cancelCloser{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	return newIdleReader(resp.Body, c.config.IdleTimeout, cancel), nil
}
