package gharchive

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func gzipBody(t *testing.T, lines []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, line := range lines {
		if _, err := gz.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestURLForHour(t *testing.T) {
	c := NewClient(http.DefaultClient, "http://example.com/")
	hour := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	want := "http://example.com/2024-01-01-5.json.gz"
	if got := c.URLForHour(hour); got != want {
		t.Fatalf("url=%q want %q", got, want)
	}
}

func TestFetch_OK(t *testing.T) {
	lines := []string{`{"id":"1"}`, `{"id":"2"}`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipBody(t, lines))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	reader, err := c.Fetch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer reader.Close()

	var got []string
	for {
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, string(line))
	}
	if len(got) != 2 || got[0] != lines[0] || got[1] != lines[1] {
		t.Fatalf("lines=%v", got)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.Fetch(context.Background(), time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.Fetch(context.Background(), time.Now())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v want APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("status=%d", apiErr.Status)
	}
}

func TestFetch_BadGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not gzip at all"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if _, err := c.Fetch(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected gzip error")
	}
}
