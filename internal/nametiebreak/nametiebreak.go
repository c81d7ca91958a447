// Package nametiebreak implements the optional LLM-assisted tie-break for
// LocationIndex's canonical-name resolution: when a location has multiple
// name:<lang> tags and none matches any entry in lang_order/alt_lang_order,
// a constrained classification call picks the most locally-recognizable
// name instead of falling back to an arbitrary map-order pick. Disabled by
// default (deterministic lang_order scan remains the default
// path); grounded on internal/platform/openai.Client, adapted
// from multimodal chat completions to a single constrained classification
// request.
package nametiebreak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client resolves an ambiguous set of candidate names to the single best
// canonical name.
type Client interface {
	ChooseCanonicalName(ctx context.Context, candidates map[string]string) (string, error)
}

// HTTPClient calls an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func New(apiKey, baseURL, model string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPClient{APIKey: apiKey, BaseURL: baseURL, Model: model, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []chatMsg `json:"messages"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
}

// ChooseCanonicalName asks the model to pick which name:<lang> value is the
// most recognizable local name for a place, given candidates keyed by
// language tag. Returns the chosen value verbatim (not the key), so a
// malformed/unexpected response degrades to "no opinion" for the caller to
// handle with its own deterministic fallback.
func (c *HTTPClient) ChooseCanonicalName(ctx context.Context, candidates map[string]string) (string, error) {
	prompt := "Given these localized place names, reply with ONLY the single most locally-recognizable name, verbatim, no explanation:\n"
	for lang, name := range candidates {
		prompt += fmt.Sprintf("%s: %s\n", lang, name)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMsg{
			{Role: "system", Content: "You are a terse place-name disambiguation assistant."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nametiebreak: unexpected status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("nametiebreak: empty response")
	}
	return out.Choices[0].Message.Content, nil
}
