package packagemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("package lookup error (%d): %s", e.Status, e.Body)
}

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://packages.ecosyste.ms"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

// Package is one package-metadata lookup result. Ecosystem here is the
// registry's ecosystem name, not a purl type.
type Package struct {
	Name          string          `json:"name"`
	Ecosystem     string          `json:"ecosystem"`
	RepositoryURL *string         `json:"repository_url"`
	Homepage      *string         `json:"homepage"`
	Description   *string         `json:"description"`
	Latest        json.RawMessage `json:"latest_release"`
}

// LookupPurl resolves one package by its package URL. The first element
// of the response array is used; an empty array means unknown.
func (c *Client) LookupPurl(ctx context.Context, purl string) (*Package, error) {
	query := url.Values{}
	query.Set("purl", purl)
	return c.lookup(ctx, query)
}

// LookupRepositoryURL resolves packages declaring the given repository
// URL; used for ecosystem inference when no purl can be built yet.
func (c *Client) LookupRepositoryURL(ctx context.Context, repoURL string) (*Package, error) {
	query := url.Values{}
	query.Set("repository_url", repoURL)
	return c.lookup(ctx, query)
}

func (c *Client) lookup(ctx context.Context, query url.Values) (*Package, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/v1/packages/lookup?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var out []Package
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
