package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"aidigest/pkg/config"
)

// ErrRateLimited marks a provider refusal caused by throughput limits; the
// summarizer retries these with backoff, unlike generic provider failures
var ErrRateLimited = errors.New("provider rate limited")

// Provider generates text from a prompt. Implementations must wrap
// throttling responses with ErrRateLimited so callers can tell them apart
// from permanent failures.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
// (DeepSeek, OpenAI, local gateways)
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	systemMsg   string
}

// NewOpenAIProvider creates a provider from summary configuration
func NewOpenAIProvider(cfg config.SummaryConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		systemMsg: fmt.Sprintf("You are an expert on AI and technology news who summarizes articles concisely and accurately in %s.",
			cfg.Language),
	}
}

// Name identifies the provider in logs
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

// Generate requests a chat completion for the prompt
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if isRateLimit(err) {
			return "", fmt.Errorf("%w: %s", ErrRateLimited, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in provider response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// isRateLimit detects HTTP 429 responses from the provider
func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
