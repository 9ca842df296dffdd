package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
)

const (
	anthropicVersion    = "2023-06-01"
	anthropicMaxRetries = 3
	anthropicInitDelay  = time.Second
	defaultMaxTokens    = 2000
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	apiKey       string
	baseURL      string
	model        string
	client       *http.Client
	initialDelay time.Duration
	log          logging.Logger
}

// NewAnthropicClient builds a client. An empty apiKey yields a disabled
// client that fails fast with common.ErrLLMUnavailable.
func NewAnthropicClient(apiKey, baseURL, model string, log logging.Logger) *AnthropicClient {
	return &AnthropicClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		client:       &http.Client{},
		initialDelay: anthropicInitDelay,
		log:          log,
	}
}

// Enabled reports whether a credential is configured.
func (c *AnthropicClient) Enabled() bool {
	return c.apiKey != ""
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends req and returns the concatenated text blocks. 429 and 5xx
// responses are retried with exponential backoff; every failure wraps
// common.ErrLLMUnavailable.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: no API key configured", common.ErrLLMUnavailable)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < anthropicMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initialDelay
			c.log.Debug(ctx, "retrying llm call", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", common.ErrLLMUnavailable, ctx.Err())
			}
		}

		text, retry, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return "", fmt.Errorf("%w: %w", common.ErrLLMUnavailable, lastErr)
}

func (c *AnthropicClient) do(ctx context.Context, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// a cancelled or expired context is final
		return "", ctx.Err() == nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("anthropic api error (%d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", false, fmt.Errorf("empty response content")
	}
	return sb.String(), false, nil
}
