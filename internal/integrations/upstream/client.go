// Package upstream holds the HTTP plumbing shared by the recommender and
// discussion engine clients.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
	defaultTimeout  = 10 * time.Second
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// FieldError is one entry of a 422 validation response.
type FieldError struct {
	Location string `json:"location"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
}

// ValidationError is returned when an upstream rejects a request body with 422.
type ValidationError struct {
	URL     string
	Details []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		if d.Location == "" {
			parts = append(parts, d.Message)
			continue
		}
		parts = append(parts, d.Location+": "+d.Message)
	}
	return fmt.Sprintf("upstream: validation failed at %s: %s", e.URL, strings.Join(parts, "; "))
}

func (e *ValidationError) HTTPStatusCode() int {
	return http.StatusUnprocessableEntity
}

// Client issues JSON requests against one upstream base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the deadline applied to calls whose context has none.
// A caller-supplied deadline always wins.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Client for baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("upstream: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

// DoJSON sends in (when non-nil) as a JSON body and returns the raw response
// body of a 2xx answer. Non-2xx answers become *ValidationError (422) or
// *HTTPStatusError. Without a context deadline the client timeout applies.
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("upstream: marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %w", method, target, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		if res.StatusCode == http.StatusUnprocessableEntity {
			return nil, &ValidationError{URL: target, Details: parseValidationDetails(buf)}
		}
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("upstream: read response body: %w", err)
	}
	return buf, nil
}

// parseValidationDetails reads {"detail":[{"loc":[...],"msg":..,"type":..}]}.
// A plain string detail becomes a single entry without location.
func parseValidationDetails(body []byte) []FieldError {
	detail := gjson.GetBytes(body, "detail")
	if !detail.Exists() {
		return []FieldError{{Message: strings.TrimSpace(string(body))}}
	}
	if !detail.IsArray() {
		return []FieldError{{Message: detail.String()}}
	}

	var out []FieldError
	detail.ForEach(func(_, entry gjson.Result) bool {
		var loc []string
		entry.Get("loc").ForEach(func(_, part gjson.Result) bool {
			loc = append(loc, part.String())
			return true
		})
		out = append(out, FieldError{
			Location: strings.Join(loc, "."),
			Message:  entry.Get("msg").String(),
			Kind:     entry.Get("type").String(),
		})
		return true
	})
	return out
}

// StatusCode reports the upstream HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var coder interface{ HTTPStatusCode() int }
	if !errors.As(err, &coder) {
		return 0, false
	}
	return coder.HTTPStatusCode(), true
}
