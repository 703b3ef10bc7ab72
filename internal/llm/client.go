// Package llm talks to an OpenAI-compatible chat completion endpoint (OpenRouter by default).
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "meta-llama/llama-3.1-8b-instruct"
	defaultTimeout = 120 * time.Second
)

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// Client implements domain.ChatModel over go-openai.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *observability.Logger
}

var _ domain.ChatModel = (*Client)(nil)

// NewClient creates a new chat client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("llm api key is required (set OPENROUTER_API_KEY)", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &refererTransport{base: http.DefaultTransport},
	}

	return &Client{
		api:    openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: observability.OrNop(logger).WithComponent("llm"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Send runs a single chat completion. No retries are attempted.
func (c *Client) Send(ctx context.Context, system string, history []domain.Message, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: wireTemperature(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.cfg.Model).Msg("Chat completion failed")
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.UpstreamError(http.StatusOK, "chat completion returned no choices", nil)
	}

	c.logger.Debug().
		Str("model", c.cfg.Model).
		Int("messages", len(messages)).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Dur("duration", time.Since(start)).
		Msg("Chat completion received")

	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps a configured 0 on the wire. go-openai omits a zero
// Temperature, which leaves the provider on its own sampling default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// classify maps go-openai errors onto upstream (the server answered non-2xx)
// and transport (no usable answer) failures.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.UpstreamError(apiErr.HTTPStatusCode, fmt.Sprintf("chat completion: %s", apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.UpstreamError(reqErr.HTTPStatusCode, "chat completion", err)
	}
	return domain.TransportError("chat completion", err)
}

// refererTransport adds the attribution headers OpenRouter asks for.
type refererTransport struct {
	base http.RoundTripper
}

func (t *refererTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", "https://github.com/spherical-ai/appraisal")
	req.Header.Set("X-Title", "Appraisal Engine")
	return t.base.RoundTrip(req)
}
