package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTurnstileURL is Cloudflare's siteverify endpoint.
const DefaultTurnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

// Turnstile verifies Cloudflare Turnstile tokens.
type Turnstile struct {
	secret     string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTurnstile creates a Turnstile verifier. An empty endpoint uses
// DefaultTurnstileURL.
func NewTurnstile(secret, endpoint string, logger *slog.Logger) *Turnstile {
	if endpoint == "" {
		endpoint = DefaultTurnstileURL
	}
	return &Turnstile{
		secret:     secret,
		url:        endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Verify posts token to siteverify. Any answer other than success, and any
// failure to get an answer, is ErrVerificationFailed.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", ErrVerificationFailed)
	}

	form := url.Values{
		"secret":   {t.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrVerificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("turnstile request failed", "error", err)
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: siteverify returned status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var result turnstileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrVerificationFailed, err)
	}

	if !result.Success {
		t.logger.Debug("turnstile rejected token", "error_codes", result.ErrorCodes)
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(result.ErrorCodes, ", "))
	}
	return nil
}
