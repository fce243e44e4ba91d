package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/storage"
)

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the body of GET /generations.
type ListResponse struct {
	Generations []*llm.Generation `json:"generations"`
	Count       int               `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListGenerations returns stored generations, newest first.
// Query parameters: kind (optional filter) and limit.
func (s *Server) handleListGenerations(c *fiber.Ctx) error {
	opts := storage.ListOptions{}

	if kind := c.Query("kind"); kind != "" {
		k, err := prompt.ParseKind(kind)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		opts.Kind = k.String()
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		opts.Limit = n
	}

	gens, err := s.driver.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list generations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list generations"})
	}
	if gens == nil {
		gens = []*llm.Generation{}
	}

	return c.JSON(ListResponse{Generations: gens, Count: len(gens)})
}

// handleGetGeneration returns a single generation by its id.
func (s *Server) handleGetGeneration(c *fiber.Ctx) error {
	id := c.Params("id")

	gen, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
		}
		s.logger.Error("failed to get generation", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get generation"})
	}

	return c.JSON(gen)
}
