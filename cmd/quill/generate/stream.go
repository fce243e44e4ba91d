package generatecmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/quill/pkg/frame"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/proxy/header"
)

// Result is what one streamed generation produced.
type Result struct {
	// ID is the id the server stores the generation under.
	ID string

	// Text is the concatenation of every decoded frame.
	Text string

	// Frames is the number of frames received.
	Frames int
}

// ServerError is a generation the server refused before streaming started.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// ErrInterrupted means the server cut the stream before it completed.
var ErrInterrupted = errors.New("generation stream interrupted")

// streamGeneration posts in to the generation server and calls onText with
// each fragment as it arrives. On ErrInterrupted the returned Result holds
// the fragments received so far.
func streamGeneration(ctx context.Context, client *http.Client, target string, kind prompt.Kind, in prompt.Input, onText func(string) error) (Result, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimSuffix(target, "/") + "/api/generate/" + kind.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, readServerError(resp)
	}

	result := Result{ID: resp.Header.Get(header.GenerationIDHeader)}
	var text strings.Builder

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			// A final line without its newline is a frame cut in half.
			if readErr != nil && !strings.HasSuffix(line, "\n") {
				break
			}

			_, fragment, err := frame.Decode(line)
			if err != nil {
				return result, err
			}
			result.Frames++
			text.WriteString(fragment)
			if err := onText(fragment); err != nil {
				return result, err
			}
		}

		if readErr == nil {
			continue
		}

		result.Text = text.String()
		if errors.Is(readErr, io.EOF) {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("%w: %w", ErrInterrupted, readErr)
	}

	result.Text = text.String()
	return result, fmt.Errorf("%w: truncated frame", ErrInterrupted)
}

func readServerError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ServerError{Status: resp.StatusCode, Message: msg}
}
