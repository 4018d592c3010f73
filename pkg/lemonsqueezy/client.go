package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

const mediaType = "application/vnd.api+json"

type Client struct {
	cfg    Config
	http   *http.Client
	secret []byte
}

type Option func(*Client)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" || cfg.StoreID == "" {
		return nil, fmt.Errorf("%w: api key and store id are required", ErrInvalidConfig)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.lemonsqueezy.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Timeout

	c := &Client{cfg: cfg, http: httpClient, secret: []byte(cfg.WebhookSecret)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do sends a JSON:API request and decodes a successful response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Join(ErrInvalidParams, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		// a non-JSON error body still yields the generic status message
		_ = json.Unmarshal(raw, &eb)
		return newAPIError(resp.StatusCode, eb)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	return nil
}
