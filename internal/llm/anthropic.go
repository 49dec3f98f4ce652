package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

const (
	// anthropicAPIURL is the Anthropic Messages API endpoint.
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"

	// anthropicVersion is the API version header value.
	anthropicVersion = "2023-06-01"

	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-3-5-haiku-20241022"

	// defaultMaxTokens caps the reply size.
	defaultMaxTokens = 512

	// defaultTimeout is the HTTP client timeout. Callers normally apply a
	// shorter per-call context deadline.
	defaultTimeout = 30 * time.Second
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures an AnthropicClient.
type ClientOption func(*AnthropicClient)

// WithModel sets the model.
func WithModel(model string) ClientOption {
	return func(c *AnthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the reply token cap.
func WithMaxTokens(n int) ClientOption {
	return func(c *AnthropicClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithBaseURL overrides the Messages API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *AnthropicClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *AnthropicClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *AnthropicClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewAnthropicClient creates a client with an explicit API key.
func NewAnthropicClient(apiKey string, opts ...ClientOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.NewAIError("create client", errors.ErrAIMissingKey)
	}

	c := &AnthropicClient{
		apiKey:    apiKey,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
		baseURL:   anthropicAPIURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewAnthropicClientFromEnv reads the API key from the named environment
// variable ("ANTHROPIC_API_KEY" when empty).
func NewAnthropicClientFromEnv(envName string, opts ...ClientOption) (*AnthropicClient, error) {
	if envName == "" {
		envName = "ANTHROPIC_API_KEY"
	}
	apiKey := os.Getenv(envName)
	if apiKey == "" {
		return nil, errors.NewAIError(envName+" environment variable not set", errors.ErrAIMissingKey)
	}
	return NewAnthropicClient(apiKey, opts...)
}

// Model returns the configured model.
func (c *AnthropicClient) Model() string { return c.model }

// messagesRequest is the Anthropic Messages API request structure.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic Messages API response structure.
type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClassifyStatus asks the model for the agent's status.
func (c *AnthropicClient) ClassifyStatus(ctx context.Context, snapshot string) (StatusResult, error) {
	reply, err := c.complete(ctx, "classify", classifySystem, buildClassifyPrompt(snapshot))
	if err != nil {
		return StatusResult{}, err
	}
	res, err := parseStatusReply(reply)
	if err != nil {
		return StatusResult{}, errors.NewAIError("parse classification", err).WithOperation("classify")
	}
	return res, nil
}

// ExtractMessage asks the model for the pending question in window.
func (c *AnthropicClient) ExtractMessage(ctx context.Context, window string) (Extraction, error) {
	lines := strings.Count(window, "\n") + 1
	reply, err := c.complete(ctx, "extract", extractSystem, buildExtractPrompt(window, lines))
	if err != nil {
		return Extraction{}, err
	}
	ext, err := parseExtractionReply(reply)
	if err != nil {
		return Extraction{}, errors.NewAIError("parse extraction", err).WithOperation("extract")
	}
	return ext, nil
}

// complete sends one single-turn request and returns the reply text.
func (c *AnthropicClient) complete(ctx context.Context, op, system, prompt string) (string, error) {
	reqBytes, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp.StatusCode, body)
	}

	var respData messagesResponse
	if err := json.Unmarshal(body, &respData); err != nil {
		return "", errors.NewAIError("unmarshal response", errors.Join(errors.ErrAIMalformedResponse, err)).WithOperation(op)
	}
	if respData.Error != nil {
		return "", errors.NewAIError(respData.Error.Message, errors.ErrAIRejected).WithOperation(op)
	}

	var sb strings.Builder
	for _, block := range respData.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.NewAIError("empty response from API", errors.ErrAIMalformedResponse).WithOperation(op)
	}
	return sb.String(), nil
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.NewAIError("request timed out", errors.Join(errors.ErrAITimeout, err)).WithOperation(op)
	}
	return errors.NewAIError("send request", errors.Join(errors.ErrAIUnavailable, err)).WithOperation(op)
}

// statusError classifies a non-200 reply.
func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var respData messagesResponse
	if json.Unmarshal(body, &respData) == nil && respData.Error != nil {
		msg = respData.Error.Message
	}

	var cause error
	switch {
	case status == http.StatusTooManyRequests:
		cause = errors.ErrAIRateLimited
	case status >= 500:
		// Includes 529 overloaded.
		cause = errors.ErrAIUnavailable
	default:
		cause = errors.ErrAIRejected
	}
	return errors.NewAIError(fmt.Sprintf("API error: %s", msg), cause).WithOperation(op).WithStatusCode(status)
}

var _ Client = (*AnthropicClient)(nil)
