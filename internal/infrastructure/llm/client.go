// Package llm implements a chat-completion client for OpenAI-compatible
// providers (DeepSeek, OpenRouter, ModelScope and alike).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

const maxResponseBytes = 1 << 20

// ProviderError classifies a failed provider call. Transient failures
// (rate limits, 5xx, timeouts, unparseable bodies) are retried; fatal ones
// (bad credential, unknown route) are surfaced immediately so the caller
// can log the misconfiguration.
type ProviderError struct {
	Status    int
	Msg       string
	Transient bool
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Status, e.Msg)
	}
	return "provider error: " + e.Msg
}

// IsTransient reports whether a retry could succeed.
func (e *ProviderError) IsTransient() bool {
	return e.Transient
}

// Client implements ports.ChatClient against a normalized endpoint.
type Client struct {
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	referer     string
	title       string
	debugPath   string
	httpClient  *http.Client

	mu      sync.Mutex
	lastRaw []byte
}

var _ ports.ChatClient = (*Client)(nil)

// New builds a client from configuration. The provider (and its default
// model) is inferred from the endpoint URL; an unrecognized endpoint
// requires an explicit model and otherwise behaves as a generic
// OpenAI-compatible provider.
func New(cfg config.ProviderConfig, debugPath string) (*Client, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("provider endpoint is not configured")
	}

	model := cfg.Model
	if model == "" {
		inferred, ok := defaultModelFor(endpoint)
		if !ok {
			return nil, fmt.Errorf("unrecognized provider endpoint %s: set an explicit model", endpoint)
		}
		model = inferred
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:    endpoint,
		model:       model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		referer:     cfg.HTTPReferer,
		title:       cfg.XTitle,
		debugPath:   debugPath,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}, nil
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
	Choices []struct {
		Message message `json:"message"`
		Text    string  `json:"text"`
	} `json:"choices"`
}

// Chat posts the prompt as a single user message and returns the
// completion content.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Msg: "api key is not configured", Transient: false}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Msg: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &ProviderError{Msg: "read response: " + err.Error(), Transient: true}
	}
	c.retainRaw(raw)

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Status:    resp.StatusCode,
			Msg:       strings.TrimSpace(string(raw[:min(len(raw), 500)])),
			Transient: isTransientStatus(resp.StatusCode),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Msg: "unparseable response body", Transient: true}
	}

	content := extractContent(parsed)
	if content == "" {
		return "", &ProviderError{Msg: "response contains no usable content", Transient: true}
	}

	return content, nil
}

// LastRawResponse returns a copy of the raw body of the most recent call.
func (c *Client) LastRawResponse() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.lastRaw))
	copy(out, c.lastRaw)
	return out
}

// retainRaw keeps the body in memory and mirrors it to the debug file.
func (c *Client) retainRaw(raw []byte) {
	c.mu.Lock()
	c.lastRaw = raw
	c.mu.Unlock()

	if c.debugPath == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(c.debugPath), 0o755)
	_ = os.WriteFile(c.debugPath, raw, 0o644)
}

func extractContent(parsed chatResponse) string {
	if len(parsed.Choices) == 0 {
		return ""
	}
	choice := parsed.Choices[0]
	if content := strings.TrimSpace(choice.Message.Content); content != "" {
		return content
	}
	return strings.TrimSpace(choice.Text)
}

func isTransientStatus(status int) bool {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status >= 500
}

// normalizeEndpoint completes bare or /v1-style bases to a full
// chat/completions path so a pasted base URL keeps working.
func normalizeEndpoint(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		return ""
	}
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	if strings.HasSuffix(url, "/v1") || strings.HasSuffix(url, "/api/v1") {
		return url + "/chat/completions"
	}
	if strings.HasSuffix(url, "api.deepseek.com") {
		return url + "/v1/chat/completions"
	}
	return url
}

// defaultModelFor infers the provider's default model from the endpoint
// host instead of requiring hand-selection.
func defaultModelFor(endpoint string) (string, bool) {
	lower := strings.ToLower(endpoint)
	switch {
	case strings.Contains(lower, "api.deepseek.com"):
		return "deepseek-chat", true
	case strings.Contains(lower, "openrouter.ai"):
		return "deepseek/deepseek-chat-v3.1:free", true
	case strings.Contains(lower, "api-inference.modelscope.cn"):
		return "deepseek-ai/DeepSeek-V3.1", true
	default:
		return "", false
	}
}
