package advisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config holds what's needed to reach an OpenAI-compatible chat completions
// endpoint.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client is an Advisor backed by a chat completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

var _ Advisor = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper replaces how retry waits are performed. Tests use it to avoid
// real sleeps.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	c := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		limiter:          rate.NewLimiter(limit, 1),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InferMetadata(ctx context.Context, req InferRequest) (*Metadata, error) {
	user, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := c.ask(ctx, KindMetadata, inferMetadataPrompt, string(user))
	if err != nil {
		return nil, err
	}
	return resp.Metadata, nil
}

func (c *Client) Organize(ctx context.Context, books []BookSummary, instruction string) ([]OrganizeUpdate, error) {
	if len(books) == 0 {
		return []OrganizeUpdate{}, nil
	}
	user, err := json.Marshal(struct {
		Instruction string        `json:"instruction"`
		Books       []BookSummary `json:"books"`
	}{strings.TrimSpace(instruction), books})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := c.ask(ctx, KindOrganize, organizePrompt, string(user))
	if err != nil {
		return nil, err
	}
	return resp.Updates, nil
}

func (c *Client) SuggestGroupName(ctx context.Context, books []BookSummary) (string, error) {
	if len(books) == 0 {
		return "", errors.New("at least one book is required")
	}
	user, err := json.Marshal(struct {
		Books []BookSummary `json:"books"`
	}{books})
	if err != nil {
		return "", errors.WithStack(err)
	}
	resp, err := c.ask(ctx, KindGroupName, groupNamePrompt, string(user))
	if err != nil {
		return "", err
	}
	return resp.GroupName, nil
}

// ask runs one completion and parses it as kind. Transport and HTTP failures
// wrap ErrUnavailable; unusable content wraps ErrMalformedResponse.
func (c *Client) ask(ctx context.Context, kind Kind, system, user string) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.Wrap(ErrUnavailable, "no api key configured")
	}
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	content, err := c.completeWithRetry(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return ParseResponse(kind, content)
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r chatResponse) content() string {
	for _, choice := range r.Choices {
		if s := strings.TrimSpace(choice.Message.Content); s != "" {
			return s
		}
		if s := strings.TrimSpace(choice.Text); s != "" {
			return s
		}
	}
	return ""
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("advisor request: http %d: %s", e.StatusCode, snippet(e.Body))
}

var errEmptyContent = errors.New("advisor request: empty content")

func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest) (string, error) {
	log := logger.FromContext(ctx)
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.WithStack(err)
		}

		content, err := c.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		log.Warn("advisor request failed, retrying", logger.Data{"attempt": attempt, "delay_ms": delay.Milliseconds(), "err": err.Error()})
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", errors.Wrapf(lastErr, "failed after %d attempts", attempts)
}

func (c *Client) sendOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", errors.WithStack(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", errors.Wrap(err, "advisor request: decode response")
	}
	if completion.Error != nil {
		return "", errors.Errorf("advisor request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	content := completion.content()
	if content == "" {
		return "", errors.WithStack(errEmptyContent)
	}
	return content, nil
}

// retryDelay decides whether err is worth another attempt: timeouts, 408,
// 429, 5xx and empty completions are.
func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, errEmptyContent) {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 waits base, attempt 2
// waits 2*base and so on, up to the max.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return errors.WithStack(ctx.Err())
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
