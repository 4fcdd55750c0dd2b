package llm

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

	"github.com/aristath/aurum/internal/metrics"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// SupportsWebSearch enables the web_search tool when a request asks for it.
	SupportsWebSearch bool
}

// Client is a chat completion client.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewClient creates a chat completion client. m may be nil.
func NewClient(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = 1
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil

	return &Client{
		cfg:     cfg,
		http:    rc.StandardClient(),
		metrics: m,
		log:     log.With().Str("client", cfg.Name).Logger(),
	}
}

// NewZhipu creates the web-search capable primary provider.
func NewZhipu(apiKey, baseURL, model string, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *Client {
	return NewClient(Config{
		Name:              "zhipu",
		BaseURL:           baseURL,
		APIKey:            apiKey,
		Model:             model,
		Timeout:           timeout,
		SupportsWebSearch: true,
	}, m, log)
}

// NewDeepSeek creates the secondary provider.
func NewDeepSeek(apiKey, baseURL, model string, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *Client {
	return NewClient(Config{
		Name:    "deepseek",
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Timeout: timeout,
	}, m, log)
}

func (c *Client) Name() string { return c.cfg.Name }

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type webSearchTool struct {
	Type      string `json:"type"`
	WebSearch struct {
		Enable       bool `json:"enable"`
		SearchResult bool `json:"search_result"`
	} `json:"web_search"`
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Tools       []webSearchTool `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion request and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	content, err := c.complete(ctx, req)
	c.metrics.ProviderCall(c.cfg.Name, err)
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = &ProviderError{Provider: c.cfg.Name, Err: err}
		}
		return "", err
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.WebSearch && c.cfg.SupportsWebSearch {
		tool := webSearchTool{Type: "web_search"}
		tool.WebSearch.Enable = true
		tool.WebSearch.SearchResult = true
		body.Tools = []webSearchTool{tool}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	c.log.Debug().
		Str("model", c.cfg.Model).
		Bool("web_search", len(body.Tools) > 0).
		Int("prompt_chars", len(req.Prompt)).
		Msg("Sending completion request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrProviderTimeout
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var parsed chatResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &ProviderError{Provider: c.cfg.Name, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	c.log.Info().
		Str("model", c.cfg.Model).
		Dur("took", time.Since(start)).
		Int("response_chars", len(parsed.Choices[0].Message.Content)).
		Msg("Completion received")

	return parsed.Choices[0].Message.Content, nil
}
