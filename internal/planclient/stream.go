package planclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ChatStream sends a chat message to the raw-text streaming variant of
// /chat_agent. onChunk is called for every chunk as it arrives and the full
// reply is returned. A server that answers with JSON instead is handled as a
// single chunk.
func (c *Client) ChatStream(ctx context.Context, token, message string, onChunk func(string)) (string, error) {
	in := ChatRequest{Message: message, Token: token, Stream: true}
	if err := c.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%s: invalid request: %w", EndpointChatAgent, err)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal request: %w", EndpointChatAgent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(EndpointChatAgent), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", EndpointChatAgent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	if err := c.wait(ctx, EndpointChatAgent); err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("planclient ChatStream request failed", "error", err)
		return "", fmt.Errorf("%s: %w", EndpointChatAgent, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", checkStatus(EndpointChatAgent, resp.StatusCode, data)
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "application/json" {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("%s: failed to read response: %w", EndpointChatAgent, err)
		}
		var out struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return "", fmt.Errorf("%s: failed to decode response: %w", EndpointChatAgent, err)
		}
		if onChunk != nil && out.Response != "" {
			onChunk(out.Response)
		}
		return out.Response, nil
	}

	var full strings.Builder
	buf := make([]byte, 1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			full.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			slog.Warn("planclient ChatStream interrupted", "error", readErr, "received", full.Len())
			return full.String(), fmt.Errorf("%s: stream interrupted: %w", EndpointChatAgent, readErr)
		}
	}
	slog.Debug("planclient ChatStream completed", "bytes", full.Len())
	return full.String(), nil
}
