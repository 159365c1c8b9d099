// Package recommender is a client for the menu recommender service.
package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"menu-planner/internal/integrations/upstream"
)

const (
	recommendPath = "/api/v1/menu/recommender"
	samplerPath   = "/api/v1/menu/menusampler"
	healthPath    = "/api/v1/health/"
)

// Client calls the recommender's menu endpoints. Responses are returned as raw
// JSON; callers inspect only the fields they need.
type Client struct {
	http *upstream.Client
}

func New(baseURL string, opts ...upstream.Option) (*Client, error) {
	c, err := upstream.New(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("recommender: %w", err)
	}
	return &Client{http: c}, nil
}

// Recommend returns up to topK dishes that can be cooked from ingredients.
func (c *Client) Recommend(ctx context.Context, ingredients []string, topK int) (json.RawMessage, error) {
	if len(ingredients) == 0 {
		return nil, errors.New("recommender: ingredients must not be empty")
	}
	if topK <= 0 {
		return nil, errors.New("recommender: top_k must be positive")
	}
	raw, err := c.http.DoJSON(ctx, http.MethodPost, recommendPath, topKQuery(topK), ingredients)
	if err != nil {
		return nil, fmt.Errorf("recommender: recommend: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("recommender: recommend: response is not valid JSON")
	}
	return raw, nil
}

// MenuSampler returns a random sample of topK dishes.
func (c *Client) MenuSampler(ctx context.Context, topK int) (json.RawMessage, error) {
	if topK <= 0 {
		return nil, errors.New("recommender: top_k must be positive")
	}
	raw, err := c.http.DoJSON(ctx, http.MethodGet, samplerPath, topKQuery(topK), nil)
	if err != nil {
		return nil, fmt.Errorf("recommender: menu sampler: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("recommender: menu sampler: response is not valid JSON")
	}
	return raw, nil
}

func (c *Client) Health(ctx context.Context) error {
	if _, err := c.http.DoJSON(ctx, http.MethodGet, healthPath, nil, nil); err != nil {
		return fmt.Errorf("recommender: health: %w", err)
	}
	return nil
}

func topKQuery(topK int) url.Values {
	return url.Values{"top_k": {strconv.Itoa(topK)}}
}
