package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClientConfig configures the HTTP generation client.
type HTTPClientConfig struct {
	// BaseURL is the endpoint root, without a trailing slash.
	BaseURL string

	// Model is the model identifier appended to the request path.
	Model string

	// Timeout bounds one HTTP round trip. The per-attempt context deadline
	// set by the caller still applies on top.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost tune connection pooling.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// HTTPClient calls a REST generation endpoint. The credential travels as a
// query parameter per the vendor's key-based auth scheme.
type HTTPClient struct {
	cfg    HTTPClientConfig
	client *http.Client
}

// NewHTTPClient creates a pooled HTTP generation client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 32
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 8
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (c *HTTPClient) Generate(ctx context.Context, credential, prompt string) (*Result, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("generation: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generation: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Error bodies are small; cap the read so a broken endpoint cannot
	// make us buffer unbounded data.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("generation: reading response: %w", err)
	}

	var parsed generateResponse
	if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("generation: parsing response: %w", jsonErr)
	}

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	result := &Result{
		BlockReason: parsed.PromptFeedback.BlockReason,
		PromptChars: len(prompt),
	}
	if len(parsed.Candidates) > 0 {
		cand := parsed.Candidates[0]
		result.FinishReason = cand.FinishReason
		for _, p := range cand.Content.Parts {
			result.Text += p.Text
		}
		result.OutputChars = len(result.Text)
	}
	return result, nil
}
