// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to a DeepSeek-compatible chat-completions API.
// Callers own retry policy; the client performs exactly one request
// per call so retry ceilings stay visible at the call site.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Turn is one conversation message sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one model call.
type Request struct {
	// Model overrides the default model when non-empty (used for
	// reasoning mode).
	Model string

	// System is the system prompt.
	System string

	// Turns are the ordered user/assistant messages. The final turn
	// carries the current question.
	Turns []Turn

	Temperature float64
	MaxTokens   int

	// JSONResponse requests a structured JSON object response.
	JSONResponse bool
}

// Delta is one streamed chunk. Exactly one of Thinking or Content is
// non-empty; reasoning-capable models interleave the two channels.
type Delta struct {
	Thinking string
	Content  string
}

// Client is the model inference service consumed by the pipeline and
// the Q&A engine. Implementations must not retry internally.
type Client interface {
	// Chat issues one request and returns the full response text.
	Chat(ctx context.Context, req Request) (string, error)

	// ChatStream issues one streaming request. Deltas arrive on the
	// first channel as they are decoded; a transport or decode failure
	// is delivered on the second channel. Both channels are closed when
	// the stream ends.
	ChatStream(ctx context.Context, req Request) (<-chan Delta, <-chan error)
}

// DeepSeekClient implements Client against the DeepSeek HTTP API (or
// any chat-completions-compatible endpoint).
type DeepSeekClient struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

// chat-completions wire structures.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Turn          `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message *chatMessage `json:"message,omitempty"`
	Delta   *chatDelta   `json:"delta,omitempty"`
}

type chatMessage struct {
	Content string `json:"content"`
}

type chatDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *DeepSeekClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *DeepSeekClient) buildBody(req Request, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}

	messages := make([]Turn, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, Turn{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Turns...)

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if req.JSONResponse {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return json.Marshal(body)
}

func (c *DeepSeekClient) newRequest(ctx context.Context, body []byte, stream bool) (*http.Request, error) {
	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Chat issues one non-streaming request.
func (c *DeepSeekClient) Chat(ctx context.Context, req Request) (string, error) {
	body, err := c.buildBody(req, false)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, body, false)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("model API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if cResp.Error != nil {
		return "", fmt.Errorf("model API error: %s", cResp.Error.Message)
	}
	if len(cResp.Choices) == 0 || cResp.Choices[0].Message == nil {
		return "", fmt.Errorf("model API returned no choices")
	}
	return cResp.Choices[0].Message.Content, nil
}

// ChatStream issues one streaming request and decodes the SSE stream.
// Thinking deltas arrive from the reasoning_content channel, content
// deltas from the content channel, in server order with no buffering
// beyond the channel itself.
func (c *DeepSeekClient) ChatStream(ctx context.Context, req Request) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		body, err := c.buildBody(req, true)
		if err != nil {
			errs <- fmt.Errorf("marshaling request: %w", err)
			return
		}

		httpReq, err := c.newRequest(ctx, body, true)
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.httpClient().Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("model API request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			errs <- fmt.Errorf("model API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		scanDone := make(chan struct{})
		scanErr := make(chan error, 1)

		go func() {
			defer close(scanDone)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data:") {
					continue
				}
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == "" {
					continue
				}
				if data == "[DONE]" {
					return
				}

				var chunk chatResponse
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					continue
				}
				if chunk.Error != nil {
					scanErr <- fmt.Errorf("model API error: %s", chunk.Error.Message)
					return
				}
				if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
					continue
				}

				d := chunk.Choices[0].Delta
				if d.ReasoningContent != "" {
					select {
					case deltas <- Delta{Thinking: d.ReasoningContent}:
					case <-ctx.Done():
						return
					}
				}
				if d.Content != "" {
					select {
					case deltas <- Delta{Content: d.Content}:
					case <-ctx.Done():
						return
					}
				}
			}
			if err := scanner.Err(); err != nil {
				scanErr <- fmt.Errorf("reading stream: %w", err)
			}
		}()

		select {
		case <-scanDone:
			select {
			case err := <-scanErr:
				errs <- err
			default:
			}
		case <-ctx.Done():
			// Force-close the body so the scanner goroutine unblocks.
			resp.Body.Close()
			<-scanDone
			errs <- ctx.Err()
		}
	}()

	return deltas, errs
}
