// Package verify gates generation requests behind a human verification
// check. The server asks a Verifier before it builds a prompt; a failed
// check means the upstream is never contacted.
package verify

import (
	"context"
	"errors"
)

// ErrVerificationFailed is returned when a token is missing or rejected.
var ErrVerificationFailed = errors.New("verification failed")

// Verifier checks a client-supplied verification token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Nop accepts every request. It is the default when no verification
// provider is configured.
type Nop struct{}

func (Nop) Verify(context.Context, string, string) error {
	return nil
}
