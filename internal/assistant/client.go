// Package assistant relays free-text chat messages to an OpenAI-compatible
// chat-completions endpoint. It holds no conversation state of its own: one
// message in, one reply out, with the user's current balance as context.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 20 * time.Second

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []requestMessage `json:"messages"`
	MaxTokens   uint32           `json:"max_tokens,omitempty"`
	Temperature *float32         `json:"temperature,omitempty"`
}

type chatChoice struct {
	Index        uint32         `json:"index"`
	Message      requestMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

// Reply forwards text to the model and returns the completion verbatim. The
// caller owns the failure path (fallback message); any error here is just an
// error.
func (c *Client) Reply(ctx context.Context, text string, balance int64) (string, error) {
	temp := float32(0.7)
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []requestMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You are the friendly assistant of a link-sharing community bot. "+
						"The user you are talking to currently has %d points. "+
						"Answer briefly and conversationally.", balance),
			},
			{Role: "user", Content: text},
		},
		MaxTokens:   512,
		Temperature: &temp,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion in response")
	}

	return response.Choices[0].Message.Content, nil
}
