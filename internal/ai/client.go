package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/internal/metrics"
)

// Config configures the OpenAI client
type Config struct {
	APIKey          string
	URL             string
	Model           string
	Timeout         time.Duration
	MaxRetries      int
	Backoff         time.Duration
	DailyTokenLimit int
	Location        *time.Location
}

// Client is a client for the OpenAI chat completions API
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	budget     *TokenBudget
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New creates a new OpenAI client
func New(cfg Config, log *zap.Logger, m *metrics.Metrics, clock clockwork.Clock) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if cfg.URL == "" {
		cfg.URL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.URL,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		httpClient: &http.Client{},
		budget:     NewTokenBudget(cfg.DailyTokenLimit, clock, cfg.Location, log),
		metrics:    m,
		log:        log,
	}, nil
}

// Message represents a message in the chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type chatOptions struct {
	maxTokens   int
	temperature float64
	jsonMode    bool
}

// chat sends one prompt and returns the trimmed reply. Rate limiting, server
// errors and network failures are retried with exponential backoff.
func (c *Client) chat(ctx context.Context, operation string, messages []Message, opts chatOptions) (string, error) {
	if !c.budget.Allow() {
		err := apperr.Provider("daily token limit reached", false, nil)
		c.metrics.ProviderCall(operation, err)
		return "", err
	}

	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   opts.maxTokens,
		Temperature: opts.temperature,
	}
	if opts.jsonMode {
		request.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			c.log.Warn("Retrying provider call",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", apperr.Provider("provider call cancelled", true, ctx.Err())
			case <-time.After(wait):
			}
		}

		var content string
		content, lastErr = c.send(ctx, requestData)
		if lastErr == nil {
			c.metrics.ProviderCall(operation, nil)
			return content, nil
		}
		if !apperr.IsTransient(lastErr) {
			break
		}
	}

	c.metrics.ProviderCall(operation, lastErr)
	return "", lastErr
}

func (c *Client) send(ctx context.Context, requestData []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// context cancellation by the caller is final, timeouts and network errors are not
		transient := !errors.Is(err, context.Canceled)
		return "", apperr.Provider("failed to send request", transient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Provider("failed to read response", true, err)
	}

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", apperr.Provider(fmt.Sprintf("API returned status %d", resp.StatusCode), transient,
			errors.New(strings.TrimSpace(string(body))))
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", apperr.DataIntegrity("failed to decode response", err)
	}
	if response.Error != nil {
		return "", apperr.Provider("API error", false, errors.New(response.Error.Message))
	}
	c.budget.Add(response.Usage.TotalTokens)
	c.metrics.TokensUsed(response.Usage.TotalTokens)

	if len(response.Choices) == 0 {
		return "", apperr.DataIntegrity("no response choices returned", nil)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
