// Package daemonctl talks to a running galleryvault daemon over its HTTP API.
package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/daemon"
	"galleryvault/internal/webqueue"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("galleryvault daemon is not running")

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon api: %d %s", e.Status, e.Message)
}

// Client issues daemon API calls.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New builds a client for the API bound at cfg.Paths.APIBind.
func New(cfg *config.Config) *Client {
	return NewWithAddress(cfg.Paths.APIBind, cfg.Paths.APIToken, nil)
}

// NewWithAddress builds a client for host:port or a full base URL.
func NewWithAddress(address, token string, httpClient *http.Client) *Client {
	base := strings.TrimRight(strings.TrimSpace(address), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, token: token, http: httpClient}
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Submit queues a crawl.
func (c *Client) Submit(ctx context.Context, req webqueue.Request) (webqueue.Job, error) {
	var job webqueue.Job
	err := c.do(ctx, http.MethodPost, "/api/crawl", req, &job)
	return job, err
}

// Jobs lists queued and finished crawls, newest first.
func (c *Client) Jobs(ctx context.Context) ([]webqueue.Job, error) {
	var resp daemon.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job returns one crawl.
func (c *Client) Job(ctx context.Context, id string) (webqueue.Job, error) {
	var job webqueue.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// RunScheduler forces an immediate run of a daemon scheduler.
func (c *Client) RunScheduler(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/schedulers/"+url.PathEscape(name)+"/run", nil, nil)
}

// WaitForJob polls until the job leaves the queued and running states.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (webqueue.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return job, err
		}
		if job.Status != webqueue.StatusQueued && job.Status != webqueue.StatusRunning {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isUnavailable(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
