package advisories

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("advisories API error (%d): %s", e.Status, e.Body)
}

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://advisories.ecosyste.ms"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

// Advisory mirrors one record of the advisory catalog API.
type Advisory struct {
	UUID           string            `json:"uuid"`
	URL            *string           `json:"url"`
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	Origin         *string           `json:"origin"`
	Severity       *string           `json:"severity"`
	PublishedAt    *time.Time        `json:"published_at"`
	WithdrawnAt    *time.Time        `json:"withdrawn_at"`
	Classification *string           `json:"classification"`
	CVSSScore      *float64          `json:"cvss_score"`
	CVSSVector     *string           `json:"cvss_vector"`
	References     []string          `json:"references"`
	SourceKind     *string           `json:"source_kind"`
	Identifiers    []string          `json:"identifiers"`
	RepositoryURL  *string           `json:"repository_url"`
	BlastRadius    *float64          `json:"blast_radius"`
	Packages       []AdvisoryPackage `json:"packages"`
	EPSSPercentage *float64          `json:"epss_percentage"`
	EPSSPercentile *float64          `json:"epss_percentile"`
}

type AdvisoryPackage struct {
	Ecosystem   string          `json:"ecosystem"`
	PackageName string          `json:"package_name"`
	Versions    json.RawMessage `json:"versions"`
}

type ListParams struct {
	Page      int
	PerPage   int
	Ecosystem string
	Severity  string
}

// List fetches one catalog page. An empty result terminates pagination
// on the caller's side.
func (c *Client) List(ctx context.Context, params ListParams) ([]Advisory, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("per_page", strconv.Itoa(params.PerPage))
	if params.Ecosystem != "" {
		query.Set("ecosystem", params.Ecosystem)
	}
	if params.Severity != "" {
		query.Set("severity", params.Severity)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/v1/advisories?"+query.Encode(), nil)
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
	var out []Advisory
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode advisories: %w", err)
	}
	return out, nil
}
