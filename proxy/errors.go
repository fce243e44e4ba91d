package proxy

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/upstream"
)

// ErrorResponse is the single structured payload returned for any failure
// that happens before the frame stream starts.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg, Status: status})
}

func writeBuildError(c *fiber.Ctx, err error) error {
	var invalid *prompt.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		return writeError(c, fiber.StatusBadRequest, invalid.Error())
	case errors.Is(err, prompt.ErrUnknownKind):
		return writeError(c, fiber.StatusNotFound, err.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
}

// writeUpstreamError maps an upstream.Client.Open failure to its response.
// Rejections carry the provider's own status code.
func (p *Proxy) writeUpstreamError(c *fiber.Ctx, err error) error {
	var (
		configErr *upstream.ConfigurationError
		rejection *upstream.RejectionError
		dialErr   *upstream.DialError
	)

	switch {
	case errors.As(err, &configErr):
		p.logger.Error("upstream not configured", "error", err)
		return writeError(c, fiber.StatusInternalServerError, configErr.Error())

	case errors.As(err, &rejection):
		msg := rejection.Message()
		if msg == "" {
			msg = rejection.Error()
		}
		return writeError(c, rejection.Status, msg)

	case errors.As(err, &dialErr):
		p.logger.Error("upstream request failed", "error", err)
		return writeError(c, fiber.StatusBadGateway, "upstream request failed")

	case errors.Is(err, upstream.ErrMissingBody):
		p.logger.Error("upstream sent no body")
		return writeError(c, fiber.StatusBadGateway, err.Error())

	default:
		p.logger.Error("upstream open failed", "error", err)
		return writeError(c, fiber.StatusBadGateway, err.Error())
	}
}
