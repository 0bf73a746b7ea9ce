package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"galleryvault/internal/logging"
)

const (
	defaultRetries    = 3
	defaultTimeout    = 25 * time.Second
	defaultRetryDelay = 2 * time.Second
	defaultUserAgent  = "galleryvault/dev"
	maxErrorBody      = 512
)

var (
	// ErrNoResponse reports that every attempt of a request failed.
	ErrNoResponse = errors.New("no response")
	// ErrStatus reports a non-retryable HTTP status.
	ErrStatus = errors.New("unexpected http status")
)

// StatusError carries the status of a rejected request.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d for %s", ErrStatus, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: %d for %s: %s", ErrStatus, e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Options configures a Client.
type Options struct {
	Retries    int
	Timeout    time.Duration
	RetryDelay time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues HTTP requests with a bounded retry budget.
type Client struct {
	http       *http.Client
	retries    int
	timeout    time.Duration
	retryDelay time.Duration
	userAgent  string
	logger     *slog.Logger
}

// NewClient builds a client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	client := &Client{
		http:       opts.HTTPClient,
		retries:    opts.Retries,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		logger:     logging.NewComponentLogger(opts.Logger, "transport"),
	}
	if client.http == nil {
		client.http = &http.Client{}
	}
	if client.retries <= 0 {
		client.retries = defaultRetries
	}
	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}
	// A negative delay disables backoff between attempts.
	if client.retryDelay < 0 {
		client.retryDelay = 0
	} else if client.retryDelay == 0 {
		client.retryDelay = defaultRetryDelay
	}
	if client.userAgent == "" {
		client.userAgent = defaultUserAgent
	}
	return client
}

// Request describes one HTTP call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Cookies map[string]string
	Body    []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do performs the request, retrying transport failures and retryable statuses.
// Non-retryable statuses return a *StatusError immediately. Exhausting the
// budget returns an error wrapping ErrNoResponse.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		resp, err := c.once(ctx, req)
		if err == nil {
			return resp, nil
		}
		var status *StatusError
		if errors.As(err, &status) && !retryableStatus(status.StatusCode) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		logging.WarnWithContext(c.logger, "http request attempt failed", "http_retry",
			logging.String("method", req.Method),
			logging.URL("url", req.URL),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.retries),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network connectivity and provider availability"),
			logging.String(logging.FieldImpact, "request will be retried"),
		)
		if attempt < c.retries && c.retryDelay > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrNoResponse, req.Method, req.URL, c.retries, lastErr)
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.decorate(httpReq, req)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL, Body: snippet}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) decorate(httpReq *http.Request, req Request) {
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for name, value := range req.Cookies {
		if strings.TrimSpace(value) == "" {
			continue
		}
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// Get fetches a URL body.
func (c *Client) Get(ctx context.Context, url string, cookies map[string]string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Cookies: cookies})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PostJSON posts payload as JSON and decodes the response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any, cookies map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Cookies: cookies, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// Download writes the body of url to dest through a temporary sibling file and
// returns the number of bytes written. A partial file never replaces dest.
func (c *Client) Download(ctx context.Context, url, dest string, cookies map[string]string) (int64, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Cookies: cookies})
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, err := tmp.Write(resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("rename into %s: %w", dest, err)
	}
	return int64(written), nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
