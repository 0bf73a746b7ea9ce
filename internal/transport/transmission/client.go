// Package transmission implements transport.Transfer on the Transmission RPC API.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"galleryvault/internal/logging"
	"galleryvault/internal/transport"
)

const (
	sessionHeader  = "X-Transmission-Session-Id"
	requestTimeout = 20 * time.Second
)

// Options configures the RPC client.
type Options struct {
	URL        string
	Username   string
	Password   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to a Transmission daemon.
type Client struct {
	url      string
	username string
	password string
	http     *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// New returns a Transmission client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		url:      strings.TrimSpace(opts.URL),
		username: opts.Username,
		password: opts.Password,
		http:     httpClient,
		logger:   logging.NewComponentLogger(opts.Logger, "transmission"),
	}
}

// Name identifies the transport in transfer rows.
func (c *Client) Name() string { return "transmission" }

// Connect verifies the daemon answers RPC calls.
func (c *Client) Connect(ctx context.Context) error {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "session-get", map[string]any{"fields": []string{"version"}}, &out); err != nil {
		return err
	}
	c.logger.Debug("transmission connected", logging.String("version", out.Version))
	return nil
}

// AddByURL queues a magnet link or torrent URL.
func (c *Client) AddByURL(ctx context.Context, url, dir string) (string, error) {
	args := map[string]any{"filename": url}
	if dir != "" {
		args["download-dir"] = dir
	}
	return c.add(ctx, args)
}

// AddByPayload queues raw .torrent contents.
func (c *Client) AddByPayload(ctx context.Context, payload []byte, dir string) (string, error) {
	args := map[string]any{"metainfo": base64.StdEncoding.EncodeToString(payload)}
	if dir != "" {
		args["download-dir"] = dir
	}
	return c.add(ctx, args)
}

type torrentRef struct {
	ID         int64  `json:"id"`
	HashString string `json:"hashString"`
	Name       string `json:"name"`
}

func (c *Client) add(ctx context.Context, args map[string]any) (string, error) {
	var out struct {
		Added     *torrentRef `json:"torrent-added"`
		Duplicate *torrentRef `json:"torrent-duplicate"`
	}
	if err := c.call(ctx, "torrent-add", args, &out); err != nil {
		return "", err
	}
	ref := out.Added
	if ref == nil {
		ref = out.Duplicate
	}
	if ref == nil || ref.HashString == "" {
		return "", errors.New("transmission: torrent-add returned no torrent")
	}
	return ref.HashString, nil
}

// Progress reports the completion of the given torrent hashes.
func (c *Client) Progress(ctx context.Context, ids []string) (map[string]transport.Progress, error) {
	result := make(map[string]transport.Progress, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var out struct {
		Torrents []struct {
			HashString  string  `json:"hashString"`
			Name        string  `json:"name"`
			PercentDone float64 `json:"percentDone"`
			DownloadDir string  `json:"downloadDir"`
		} `json:"torrents"`
	}
	args := map[string]any{
		"ids":    ids,
		"fields": []string{"hashString", "name", "percentDone", "downloadDir"},
	}
	if err := c.call(ctx, "torrent-get", args, &out); err != nil {
		return nil, err
	}
	for _, torrent := range out.Torrents {
		result[torrent.HashString] = transport.Progress{
			ID:      torrent.HashString,
			Percent: torrent.PercentDone * 100,
			Done:    torrent.PercentDone >= 1,
			Name:    torrent.Name,
			Dir:     torrent.DownloadDir,
		}
	}
	return result, nil
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// call performs one RPC, refreshing the CSRF session id once on 409.
func (c *Client) call(ctx context.Context, method string, args, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("transmission: encode %s: %w", method, err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.post(ctx, body)
		if err != nil {
			return fmt.Errorf("%w: transmission %s: %w", transport.ErrNoResponse, method, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("transmission: read %s response: %w", method, readErr)
		}
		switch resp.StatusCode {
		case http.StatusConflict:
			c.setSession(resp.Header.Get(sessionHeader))
			continue
		case http.StatusUnauthorized:
			return errors.New("transmission: unauthorized, check transmission.username and password")
		case http.StatusOK:
		default:
			return &transport.StatusError{StatusCode: resp.StatusCode, URL: c.url, Body: strings.TrimSpace(string(data))}
		}

		var decoded rpcResponse
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("transmission: decode %s response: %w", method, err)
		}
		if decoded.Result != "success" {
			return fmt.Errorf("transmission: %s failed: %s", method, decoded.Result)
		}
		if out != nil && len(decoded.Arguments) > 0 {
			if err := json.Unmarshal(decoded.Arguments, out); err != nil {
				return fmt.Errorf("transmission: decode %s arguments: %w", method, err)
			}
		}
		return nil
	}
	return errors.New("transmission: session id negotiation failed")
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if session := c.session(); session != "" {
		req.Header.Set(sessionHeader, session)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return c.http.Do(req)
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}
