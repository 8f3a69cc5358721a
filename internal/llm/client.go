// Package llm provides the language-model capability for NPC cognition:
// text completion for plans, reflections, and dialogue, and embeddings for
// memory retrieval. All failures collapse to an error at this boundary;
// callers treat any error as "the model produced nothing" and fail soft.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// LanguageModel is the capability the simulation engines consume.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures the client.
type Options struct {
	APIKey         string
	BaseURL        string // optional override for OpenAI-compatible servers
	Model          string
	EmbeddingModel string
	Timeout        time.Duration // per-call; a hung call must not stall a tick forever
	CallsPerMinute int
}

func (o *Options) fillDefaults() {
	if o.Model == "" {
		o.Model = openai.GPT4oMini
	}
	if o.EmbeddingModel == "" {
		o.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.CallsPerMinute <= 0 {
		o.CallsPerMinute = 60
	}
}

// Client wraps the OpenAI API behind a rate limiter and a circuit breaker.
// A nil Client is valid and reports itself as disabled.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	timeout        time.Duration
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
}

// NewClient creates a language-model client. Returns nil when apiKey is
// empty (LLM features disabled; the simulation still ticks).
func NewClient(opts Options) *Client {
	if opts.APIKey == "" {
		return nil
	}
	opts.fillDefaults()

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "language-model",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("llm circuit state change", "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		timeout:        opts.Timeout,
		limiter:        rate.NewLimiter(rate.Limit(float64(opts.CallsPerMinute)/60.0), opts.CallsPerMinute),
		breaker:        breaker,
	}
}

// Enabled reports whether the client can make calls.
func (c *Client) Enabled() bool {
	return c != nil
}

// Complete sends a system+user prompt and returns the completion text.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("llm client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.7,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return result.(string), nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("llm client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("embedding returned no data")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return result.([]float32), nil
}
