package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"presale-backend/internal/llm"
)

// Client implements llm.Client against a local Ollama endpoint. It prefers
// the chat API and falls back to the generate API for older servers.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New constructs an Ollama client. The request deadline is supplied per
// call through the context, not through the http.Client.
func New(baseURL, model string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("OLLAMA_URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OLLAMA_MODEL is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends the prompts to the model and returns the raw response text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, status, err := c.post(ctx, "/api/chat", chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", &llm.TransportError{Err: fmt.Errorf("chat response parse: %w", err)}
		}
		return parsed.Message.Content, nil
	}

	// Older Ollama versions lack /api/chat; retry through /api/generate.
	prompt := userPrompt
	if strings.TrimSpace(systemPrompt) != "" {
		prompt = systemPrompt + "\n\n" + userPrompt
	}
	body, status, err = c.post(ctx, "/api/generate", generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &llm.StatusError{StatusCode: status, Body: truncate(string(body), 500)}
	}
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.TransportError{Err: fmt.Errorf("generate response parse: %w", err)}
	}
	return parsed.Response, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, classifyTransport(err)
	}
	return body, resp.StatusCode, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.TimeoutError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &llm.TimeoutError{Err: err}
	}
	return &llm.TransportError{Err: err}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ llm.Client = (*Client)(nil)
