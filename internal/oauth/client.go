package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single request to the authorization server
	DefaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a response body is read
	maxBodySize = 1 << 20

	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// Client issues requests to the authorization server and decodes JSON
// responses. Non-2xx answers are returned as *TransportError.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a transport client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetJSON issues a GET request and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, endpoint string, header http.Header, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return c.do(req, out)
}

// PostForm issues a form-encoded POST request and decodes the JSON response into out
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentTypeForm)
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if endpoint == "" {
		return nil, &TransportError{Method: method, Err: ErrEmptyEndpoint}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: endpoint, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", contentTypeJSON)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	endpoint := req.URL.String()
	c.logger.Debug("sending request",
		zap.String("method", req.Method),
		zap.String("url", endpoint),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Method: req.Method, URL: endpoint, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &TransportError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response: %w", err),
		}
	}

	c.logger.Debug("received response",
		zap.String("method", req.Method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
	)

	if !isSuccess(resp.StatusCode) {
		terr := &TransportError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			terr.OAuth = &errResp
		}
		return terr
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &TransportError{Method: req.Method, URL: endpoint, StatusCode: resp.StatusCode, Err: ErrEmptyBody}
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

// Clone returns a copy of the client with opts applied
func (c *Client) Clone(opts ...ClientOption) *Client {
	clone := *c
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}
