// Package notify sends run-completion and run-failure emails for an
// import run, reusing hand-rolled SendGrid v3 mail/send
// client rather than pulling in the SendGrid Go SDK (the pack never
// imports it, and the wire format is a handful of JSON fields).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osmscout-go/mapimport/internal/pkg/httpx"
	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	ToEmail          string
	Timeout          time.Duration
	MaxRetries       int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		BaseURL:          strings.TrimSpace(os.Getenv("SENDGRID_BASE_URL")),
		DefaultFromEmail: strings.TrimSpace(os.Getenv("NOTIFY_FROM_EMAIL")),
		DefaultFromName:  strings.TrimSpace(os.Getenv("NOTIFY_FROM_NAME")),
		ToEmail:          strings.TrimSpace(os.Getenv("NOTIFY_TO_EMAIL")),
		Timeout:          time.Duration(intEnv("NOTIFY_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:       intEnv("NOTIFY_MAX_RETRIES", 4),
	}
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// NewFromEnv returns a nil Client (and no error) when SENDGRID_API_KEY or
// NOTIFY_TO_EMAIL is unset, so wiring a notifier into the orchestrator's
// run lifecycle is opt-in: the zero-config case silently skips
// notification instead of failing an otherwise-healthy run.
func NewFromEnv(log *logger.Logger) (Client, string, error) {
	cfg := ConfigFromEnv()
	if cfg.APIKey == "" || cfg.ToEmail == "" {
		return nil, "", nil
	}
	c, err := New(log, cfg)
	return c, cfg.ToEmail, err
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	return &client{
		log:        log.With("client", "NotifyClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type SendEmailRequest struct {
	From    EmailAddress
	To      []EmailAddress
	Subject string
	Text    string
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From              EmailAddress      `json:"from"`
	Subject           string            `json:"subject"`
	Content           []mailContent     `json:"content"`
}

type personalization struct {
	To []EmailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("notify client unavailable")
	}
	if strings.TrimSpace(req.From.Email) == "" {
		req.From.Email = c.cfg.DefaultFromEmail
		req.From.Name = c.cfg.DefaultFromName
	}
	if strings.TrimSpace(req.From.Email) == "" {
		return nil, fmt.Errorf("notify: From.Email required (or set NOTIFY_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("notify: To required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, fmt.Errorf("notify: Subject required")
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: req.To}},
		From:             req.From,
		Subject:          req.Subject,
		Content:          []mailContent{{Type: "text/plain", Value: req.Text}},
	}

	resp, _, err := c.do(ctx, "POST", "/v3/mail/send", wire)
	if err != nil {
		return nil, err
	}
	return &SendEmailResult{
		StatusCode: resp.StatusCode,
		MessageID:  strings.TrimSpace(resp.Header.Get("X-Message-Id")),
	}, nil
}

type errorItem struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Errors []errorItem `json:"errors"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	Errors     []errorItem
}

func (e *HTTPError) Error() string {
	if len(e.Errors) > 0 && strings.TrimSpace(e.Errors[0].Message) != "" {
		return fmt.Sprintf("notify http %d: %s", e.StatusCode, e.Errors[0].Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("notify http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return resp, raw, nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, nil, err
		}
		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)
		c.log.Warn("notify request retrying",
			"path", path, "attempt", attempt+1, "max_retries", c.maxRetries,
			"sleep", sleepFor.String(), "error", err.Error())
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return nil, nil, errors.New("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && len(er.Errors) > 0 {
			he.Errors = er.Errors
		}
		return resp, raw, he
	}
	return resp, raw, nil
}
