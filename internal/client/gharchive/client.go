package gharchive

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dependatrack/internal/models"
)

// ErrNotFound means the archive hour has not been published yet. It is
// transient: the caller retries the hour later and records nothing.
var ErrNotFound = errors.New("archive hour not published")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("archive error (%d): %s", e.Status, e.Body)
}

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "http://data.gharchive.org"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) URLForHour(t time.Time) string {
	return c.host + "/" + models.FilenameForHour(t)
}

// Fetch downloads and decompresses one archive hour. The returned reader
// yields newline-delimited JSON event records and must be closed.
func (c *Client) Fetch(ctx context.Context, t time.Time) (*ArchiveReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLForHour(t), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("gzip decode failed: %w", err)
	}
	return newArchiveReader(resp.Body, gz), nil
}

// ArchiveReader walks a decompressed archive line by line.
type ArchiveReader struct {
	body    io.Closer
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

func newArchiveReader(body io.Closer, gz *gzip.Reader) *ArchiveReader {
	scanner := bufio.NewScanner(gz)
	// Dependabot PR bodies regularly push event records past the default
	// scanner limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &ArchiveReader{body: body, gz: gz, scanner: scanner}
}

// Next returns the next raw event line, io.EOF at the end, or the
// decompression error that interrupted the stream. The returned slice
// is only valid until the next call.
func (r *ArchiveReader) Next() ([]byte, error) {
	if r.scanner.Scan() {
		return r.scanner.Bytes(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("archive read failed: %w", err)
	}
	return nil, io.EOF
}

func (r *ArchiveReader) Close() error {
	gzErr := r.gz.Close()
	bodyErr := r.body.Close()
	if gzErr != nil {
		return gzErr
	}
	return bodyErr
}
