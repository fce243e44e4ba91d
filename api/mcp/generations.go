package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/utils"
)

var (
	listToolName    = "list_generations"
	listDescription = "List recent quill generations, newest first. Optionally filter by kind (story, fanfic, poem, plot, backstory, titles). Returns a short preview of each text."

	getToolName    = "get_generation"
	getDescription = "Get one quill generation by id, including the prompt that was sent upstream and the full visible text."
)

const previewLength = 200

// ListInput represents the input arguments for the list_generations tool.
type ListInput struct {
	Kind  string `json:"kind,omitempty" jsonschema:"only return generations of this kind"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of generations to return (default: 10)"`
}

// Summary is one generation in a list result.
type Summary struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Model     string     `json:"model"`
	Status    llm.Status `json:"status"`
	Prompt    string     `json:"prompt"`
	Preview   string     `json:"preview"`
	CreatedAt string     `json:"created_at"`
}

// ListOutput represents the output of the list_generations tool.
type ListOutput struct {
	Generations []Summary `json:"generations"`
	Count       int       `json:"count"`
}

// GetInput represents the input arguments for the get_generation tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the generation id"`
}

// GetOutput represents the output of the get_generation tool.
type GetOutput struct {
	Generation *llm.Generation `json:"generation"`
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	s.config.Logger.Debug("MCP list request", "kind", input.Kind, "limit", limit)

	gens, err := s.config.Driver.List(ctx, storage.ListOptions{Kind: input.Kind, Limit: limit})
	if err != nil {
		s.config.Logger.Error("failed to list generations", "error", err)
		return toolError("Failed to list generations: %v", err), ListOutput{}, nil
	}

	output := ListOutput{Generations: make([]Summary, 0, len(gens))}
	for _, g := range gens {
		output.Generations = append(output.Generations, Summary{
			ID:        g.ID,
			Kind:      g.Kind,
			Model:     g.Model,
			Status:    g.Status,
			Prompt:    g.Prompt,
			Preview:   utils.Truncate(g.Text, previewLength),
			CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	output.Count = len(output.Generations)

	return textResult(output), output, nil
}

func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, GetOutput, error) {
	if input.ID == "" {
		return toolError("id is required"), GetOutput{}, nil
	}

	gen, err := s.config.Driver.Get(ctx, input.ID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return toolError("No generation with id %q", input.ID), GetOutput{}, nil
		}
		s.config.Logger.Error("failed to get generation", "id", input.ID, "error", err)
		return toolError("Failed to get generation: %v", err), GetOutput{}, nil
	}

	output := GetOutput{Generation: gen}
	return textResult(output), output, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// textResult mirrors structured output as JSON text for clients that only
// read content blocks.
func textResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return toolError("Failed to serialize results: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}
