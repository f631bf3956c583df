package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(opts Options) *HTTPClient {
	if opts.UserAgent == "" {
		opts.UserAgent = "yanderelinks-test/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return NewHTTPClient(opts)
}

func TestHTTPClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "yanderelinks-test/1.0" {
			t.Errorf("Expected User-Agent 'yanderelinks-test/1.0', got '%s'", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<script>Post.register({"file_url":"http://a/1.jpg"})</script>`))
	}))
	defer server.Close()

	client := newTestClient(Options{})
	defer client.Close()

	text, err := client.Fetch(context.Background(), server.URL+"/post")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(text, `"file_url":"http://a/1.jpg"`) {
		t.Errorf("Unexpected body: %q", text)
	}
}

func TestHTTPClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(Options{})
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrStatus) {
		t.Errorf("Expected ErrStatus, got %v", err)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(Options{Timeout: 50 * time.Millisecond})
	defer client.Close()

	if _, err := client.Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected timeout error, got nil")
	}
}

func TestHTTPClientCancelPending(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(Options{})
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Fetch(context.Background(), server.URL)
		errCh <- err
	}()

	<-started
	client.CancelPending()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CancelPending did not abort the request")
	}
}

func TestHTTPClientUsableAfterCancelPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(Options{})
	defer client.Close()

	client.CancelPending()
	text, err := client.Fetch(context.Background(), server.URL)
	if err != nil || text != "ok" {
		t.Errorf("Fetch after CancelPending = %q, %v", text, err)
	}
}

func TestHTTPClientClosed(t *testing.T) {
	client := newTestClient(Options{})
	client.Close()

	_, err := client.Fetch(context.Background(), "http://127.0.0.1:1/")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestHTTPClientRespectsRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /pool/\n"))
			return
		}
		_, _ = w.Write([]byte("page"))
	}))
	defer server.Close()

	client := newTestClient(Options{RespectRobots: true})
	defer client.Close()

	if _, err := client.Fetch(context.Background(), server.URL+"/pool/show/1"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("Expected ErrDisallowed, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), server.URL+"/post"); err != nil {
		t.Errorf("Expected /post to be allowed, got %v", err)
	}
}
