package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"galleryvault/internal/transport"
)

func newTestClient() *transport.Client {
	return transport.NewClient(transport.Options{Retries: 3, RetryDelay: -1, Timeout: time.Second})
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestClient().Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Fatalf("unexpected body %q after %d calls", body, calls.Load())
	}
}

func TestClientExhaustionReturnsNoResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient().Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, transport.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient().Get(context.Background(), srv.URL, nil)
	var status *transport.StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if errors.Is(err, transport.ErrNoResponse) {
		t.Fatal("client errors should not be reported as exhaustion")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientSendsCookiesAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("member_id")
		if err != nil || cookie.Value != "42" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"answer": 7}`))
	}))
	defer srv.Close()

	var out struct {
		Answer int `json:"answer"`
	}
	err := newTestClient().PostJSON(context.Background(), srv.URL, map[string]string{"q": "x"}, &out, map[string]string{"member_id": "42"})
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Answer != 7 {
		t.Fatalf("unexpected decoded answer %d", out.Answer)
	}
}

func TestClientDownloadWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "sub", "file.zip")
	n, err := newTestClient().Download(context.Background(), srv.URL, dest, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if n != int64(len(data)) || string(data) != "archive-bytes" {
		t.Fatalf("unexpected download %q (%d bytes)", data, n)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}
