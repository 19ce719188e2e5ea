package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stylebot/server/internal/infra/config"
)

// HTTPBackend calls a JSON generation API.
type HTTPBackend struct {
	client   *http.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

// NewHTTPBackend creates a backend for cfg using client.
func NewHTTPBackend(client *http.Client, cfg config.BackendConfig) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
	}
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	Style     string `json:"style,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	User      string `json:"user"`
}

type generateResponse struct {
	ResultURL string `json:"result_url"`
	Error     *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Generate posts req and returns the result URL.
func (b *HTTPBackend) Generate(ctx context.Context, req *Request) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	body, err := json.Marshal(&generateRequest{
		Prompt:    req.Prompt,
		Style:     req.Style,
		SourceURL: req.SourceURL,
		User:      fmt.Sprintf("%d", req.UserID),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("backend error %s: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if out.ResultURL == "" {
		return "", ErrEmptyResult
	}
	return out.ResultURL, nil
}
