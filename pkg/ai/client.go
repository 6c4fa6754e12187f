// Package ai delivers packaged questions to an external language
// model. Two providers are tried in order (primary, fallback);
// transient failures are retried with exponential back-off, two
// attempts per provider. When neither provider is configured the
// client reports disabled and the linguistic layer runs in fallback
// mode for every request.
package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/logger"
)

// provider is one backing model endpoint.
type provider interface {
	Name() string
	Complete(ctx context.Context, question string) (string, error)
}

// Client tries each configured provider in order.
type Client struct {
	providers []provider
	timeout   time.Duration
	retries   int
	log       *logger.Logger
}

// NewClient builds the provider chain from configuration. Providers
// without credentials are silently omitted.
func NewClient(cfg config.AIConfig, log *logger.Logger) (*Client, error) {
	log = log.WithComponent("ai")
	c := &Client{
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		log:     log,
	}
	if c.timeout == 0 {
		c.timeout = 30 * time.Second
	}
	if c.retries == 0 {
		c.retries = 2
	}

	for _, pc := range []config.ProviderConfig{cfg.Primary, cfg.Fallback} {
		if !pc.Configured() {
			continue
		}
		p, err := newProvider(pc)
		if err != nil {
			return nil, err
		}
		c.providers = append(c.providers, p)
	}

	if len(c.providers) == 0 {
		log.Warnw("No language model providers configured, linguistic verdicts will use fallback mode")
	} else {
		names := make([]string, 0, len(c.providers))
		for _, p := range c.providers {
			names = append(names, p.Name())
		}
		log.Infow("Language model providers initialised", "providers", names)
	}

	return c, nil
}

func newProvider(pc config.ProviderConfig) (provider, error) {
	switch pc.Kind {
	case "openai", "":
		return newOpenAIProvider(pc)
	case "gemini":
		return newGeminiProvider(pc)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// Enabled reports whether at least one provider has credentials.
func (c *Client) Enabled() bool {
	return len(c.providers) > 0
}

// Ask delivers the question through the provider chain. The error is
// the last provider's when all of them fail.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("no providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		reply, err := c.askWithRetry(ctx, p, question)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		c.log.Warnw("Provider failed, trying next",
			"provider", p.Name(),
			"error", err.Error(),
		)
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

func (c *Client) askWithRetry(ctx context.Context, p provider, question string) (string, error) {
	var lastErr error
	backoff := 1 * time.Second

	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		reply, err := p.Complete(callCtx, question)
		cancel()

		if err == nil {
			c.log.Debugw("Model completion succeeded",
				"provider", p.Name(),
				"attempt", attempt+1,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"reply_length", len(reply),
			)
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", p.Name(), c.retries, lastErr)
}

// openaiProvider speaks to any OpenAI-compatible endpoint, including
// OpenRouter via base_url.
type openaiProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(pc config.ProviderConfig) (*openaiProvider, error) {
	clientCfg := openai.DefaultConfig(pc.APIKey)
	if pc.BaseURL != "" {
		clientCfg.BaseURL = pc.BaseURL
	}
	model := pc.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Complete(ctx context.Context, question string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a code analysis expert. Reply with valid JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: question,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// geminiProvider speaks to the Gemini API.
type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(pc config.ProviderConfig) (*geminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: pc.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := pc.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Complete(ctx context.Context, question string) (string, error) {
	result, err := p.client.Models.GenerateContent(ctx,
		p.model,
		genai.Text(question),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}
