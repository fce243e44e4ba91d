// Package header provides header handling for the quill generation server.
//
// The server sits between a browser and an upstream model provider like so:
//
//	Browser <--> quill <--> Upstream model provider
//
// and each leg carries its own headers. Only a small set of client headers
// is passed on upstream; the client never sees the provider's headers.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// GenerationIDHeader carries the id the finished generation is stored under.
const GenerationIDHeader = "X-Quill-Generation-Id"

// Handler manages headers between the two legs.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// forwardRequest is the set of client request headers (browser --> quill --> upstream)
// that are passed to the upstream provider. Everything else, including
// cookies and the verification token, stays on the first leg.
var forwardRequest = map[string]struct{}{
	// Lets multilingual models answer in the reader's language.
	"Accept-Language": {},

	"User-Agent": {},

	// Correlates provider-side logs with ours.
	"X-Request-Id": {},
}

// streamResponse is written on every relayed frame stream.
var streamResponse = map[string]string{
	fiber.HeaderContentType: "text/plain; charset=utf-8",

	// Every generation is unique; intermediaries must not replay one.
	fiber.HeaderCacheControl: "no-cache",

	// The body is plain text frames. A browser sniffing it as HTML would
	// turn model output into markup.
	fiber.HeaderXContentTypeOptions: "nosniff",
}

// UpstreamHeaders returns the client headers to forward upstream.
func (h *Handler) UpstreamHeaders(c *fiber.Ctx) http.Header {
	out := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, ok := forwardRequest[k]; ok {
			out.Set(k, string(value))
		}
	})
	return out
}

// SetStreamResponseHeaders prepares the client response for a frame stream.
func (h *Handler) SetStreamResponseHeaders(c *fiber.Ctx, generationID string) {
	for k, v := range streamResponse {
		c.Set(k, v)
	}
	c.Set(GenerationIDHeader, generationID)
}
