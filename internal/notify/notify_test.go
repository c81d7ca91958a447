package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return &client{
		log:        log,
		cfg:        Config{APIKey: "test-key", BaseURL: "http://sendgrid.local", DefaultFromEmail: "noreply@example.com"},
		httpClient: &http.Client{Transport: roundTripFunc(roundTrip)},
		maxRetries: 2,
	}
}

func TestSendBuildsMailSendRequest(t *testing.T) {
	var captured mailSendRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v3/mail/send" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("auth header: got=%q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		raw, _ := json.Marshal(map[string]any{})
		resp := &http.Response{StatusCode: http.StatusAccepted, Header: make(http.Header), Body: io.NopCloser(bytes.NewReader(raw))}
		resp.Header.Set("X-Message-Id", "msg-1")
		return resp, nil
	})

	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "ops@example.com"}},
		Subject: "Import completed",
		Text:    "done",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg-1" {
		t.Fatalf("message id: got=%q", res.MessageID)
	}
	if captured.From.Email != "noreply@example.com" {
		t.Fatalf("from email defaulted incorrectly: got=%q", captured.From.Email)
	}
	if len(captured.Personalizations) != 1 || len(captured.Personalizations[0].To) != 1 {
		t.Fatalf("personalizations shape: got=%+v", captured.Personalizations)
	}
	if captured.Content[0].Type != "text/plain" || captured.Content[0].Value != "done" {
		t.Fatalf("content shape: got=%+v", captured.Content)
	}
}

func TestSendMissingToErrors(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request should be sent")
		return nil, nil
	})
	_, err := c.Send(context.Background(), SendEmailRequest{Subject: "x", Text: "y"})
	if err == nil {
		t.Fatalf("expected error for missing To")
	}
}

func TestSendRetriesOnServerError(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 2 {
			raw, _ := json.Marshal(map[string]any{})
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Header: make(http.Header), Body: io.NopCloser(bytes.NewReader(raw))}, nil
		}
		raw, _ := json.Marshal(map[string]any{})
		return &http.Response{StatusCode: http.StatusAccepted, Header: make(http.Header), Body: io.NopCloser(bytes.NewReader(raw))}, nil
	})
	_, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "ops@example.com"}},
		Subject: "retry check",
		Text:    "body",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", attempts)
	}
}

func TestReportRunResultNoopWithoutClient(t *testing.T) {
	// Must not panic when notification isn't configured.
	ReportRunResult(context.Background(), nil, nil, "", RunSummary{Extract: "andorra"})
}
