package ml

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

	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
	"ContentCurator/internal/infrastructure/fetch"
	"ContentCurator/internal/ports"
)

// Client talks to an external scoring service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ScoringBackend = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.ServiceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Score posts the text with the rubric to /score. The service answers
// {"scores": {"<dimension>": value}}; values are passed through untouched.
func (c *Client) Score(ctx context.Context, text string, dimensions []domain.Dimension) (map[string]any, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("scoring service endpoint is not configured")
	}

	payload := map[string]any{
		"text":       text,
		"dimensions": dimensions,
	}

	var resp struct {
		Scores map[string]any `json:"scores"`
	}
	if err := c.post(ctx, "/score", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) == 0 {
		return nil, fmt.Errorf("%w: service returned no scores", domain.ErrScoringParse)
	}

	return resp.Scores, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.FetchError{URL: url, Kind: domain.ErrTransientNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Kind:       fetch.ClassifyStatus(resp.StatusCode),
			Err:        errors.New(strings.TrimSpace(string(detail))),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrScoringParse, err)
	}

	return nil
}
