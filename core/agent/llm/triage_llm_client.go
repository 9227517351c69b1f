// Package llm wraps an OpenAI-compatible completion API behind the
// classification gateway port, with a deterministic rule fallback for
// every operation.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// Default model preference order; the first model producing parseable
// output wins.
var DefaultModels = []string{
	"openai/gpt-oss-20b",
	"meta/llama-3.1-70b-instruct",
	"openai/gpt-4o-mini",
}

const (
	DefaultBaseURL        = "https://integrate.api.nvidia.com/v1"
	DefaultEmbeddingModel = "nvidia/nv-embedqa-e5-v5"
	DefaultCallTimeout    = 30 * time.Second
)

var errNoChoices = errors.New("completion returned no choices")

type Client struct {
	api         *openai.Client
	models      []string
	embedModel  string
	maxTokens   int
	temperature float32
	callTimeout time.Duration
	available   bool
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Models         []string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
	CallTimeout    time.Duration
}

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = baseURL

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > 5 {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})

	available := cfg.APIKey != ""
	if !available {
		log.Warn().Msg("llm api key not configured, every call uses the rule fallback")
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		models:      models,
		embedModel:  embedModel,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		callTimeout: timeout,
		available:   available,
		breaker:     breaker,
		log:         log,
	}
}

// Available reports whether the provider is configured at all. When
// false, every gateway operation goes straight to its fallback.
func (c *Client) Available() bool {
	return c.available
}

// complete runs one chat completion against a specific model.
func (c *Client) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// completeAny tries each model in preference order and returns the first
// successful completion.
func (c *Client) completeAny(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for _, model := range c.models {
		content, err := c.complete(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.log.Debug().Err(err).Str("model", model).Msg("completion failed, trying next model")
	}
	return "", lastErr
}

// Embedding computes a vector for text via the provider.
func (c *Client) Embedding(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.embedModel),
			Input: []string{text},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, errNoChoices
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, err
	}

	raw := result.([]float32)
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embedModel
}

// stripFences removes markdown code fences around a JSON payload. This is
// the single "repair" attempt before falling back to rules.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
