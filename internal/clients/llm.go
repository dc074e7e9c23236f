// Package clients contains thin typed adapters around external services:
// the decision model API, brokers, exchanges and screening data providers.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/amanabot/amana/pkg/retrier"
)

const llmTimeout = 90 * time.Second

// LLMClient is the decision model interface consumed by strategies.
type LLMClient interface {
	// GenerateJSON sends the prompts and returns the raw completion text.
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() string
	Model() string
}

// OpenAICompatibleClient talks to any chat-completions API that follows the
// OpenAI wire format (OpenAI, OpenRouter, Ollama, vLLM and the like).
type OpenAICompatibleClient struct {
	provider   string
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	retry      *retrier.Retrier
}

// NewOpenAICompatibleClient creates a client for an OpenAI-compatible API.
// apiURL may be the API root (…/v1) or the full chat-completions endpoint.
// apiKey may be empty for local endpoints that do not authenticate.
func NewOpenAICompatibleClient(provider, apiURL, apiKey, model string) *OpenAICompatibleClient {
	if !strings.HasSuffix(apiURL, "/chat/completions") {
		apiURL = strings.TrimRight(apiURL, "/") + "/chat/completions"
	}
	return &OpenAICompatibleClient{
		provider:   provider,
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: llmTimeout},
		retry: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(2*time.Second),
		),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Provider returns the configured provider name.
func (c *OpenAICompatibleClient) Provider() string { return c.provider }

// Model returns the configured model name.
func (c *OpenAICompatibleClient) Model() string { return c.model }

// GenerateJSON sends one chat completion request and returns the raw
// assistant message. Transient failures are retried with backoff.
func (c *OpenAICompatibleClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		// deterministic responses for trading decisions
		Temperature: 0.0,
		MaxTokens:   8000,
	}

	return retrier.DoWithData(c.retry, ctx, func(ctx context.Context) (string, error) {
		return c.sendRequest(ctx, reqBody)
	})
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("model API error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("model API returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
