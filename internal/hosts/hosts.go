package hosts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dependatrack/internal/models"
)

// ErrNotFound reports that a repository no longer resolves on its host.
var ErrNotFound = errors.New("not found on host")

// HostClient is the capability surface of one code-hosting platform:
// URL construction plus best-effort detail fetches.
type HostClient interface {
	Kind() string
	IssueURL(repo *models.Repository, issue *models.Issue) string
	FetchRepository(ctx context.Context, repo *models.Repository) (*RepositoryDetail, error)
}

// RepositoryDetail is the subset of repository detail the tracker
// cares about.
type RepositoryDetail struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Owner         string `json:"-"`
	OwnerRef      *struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// registry maps host kinds to client constructors; hosts are dispatched
// by kind string stored on the Host row.
var registry = map[string]func(host *models.Host, httpClient *http.Client) HostClient{
	"github": func(host *models.Host, httpClient *http.Client) HostClient {
		return &githubClient{host: host, httpClient: httpClient}
	},
	"gitlab": func(host *models.Host, httpClient *http.Client) HostClient {
		return &gitlabClient{host: host}
	},
}

// For returns the client for a host's kind, or an error for kinds the
// registry does not know.
func For(host *models.Host, httpClient *http.Client) (HostClient, error) {
	build, ok := registry[strings.ToLower(host.Kind)]
	if !ok {
		return nil, fmt.Errorf("unsupported host kind %q", host.Kind)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return build(host, httpClient), nil
}

type githubClient struct {
	host       *models.Host
	httpClient *http.Client
}

func (c *githubClient) Kind() string { return "github" }

func (c *githubClient) IssueURL(repo *models.Repository, issue *models.Issue) string {
	kind := "issues"
	if issue.PullRequest {
		kind = "pull"
	}
	return fmt.Sprintf("%s/%s/%s/%d", strings.TrimRight(c.host.URL, "/"), repo.FullName, kind, issue.Number)
}

func (c *githubClient) FetchRepository(ctx context.Context, repo *models.Repository) (*RepositoryDetail, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s", repo.FullName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("repository fetch failed (%d)", resp.StatusCode)
	}
	var detail RepositoryDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode repository: %w", err)
	}
	if detail.OwnerRef != nil {
		detail.Owner = detail.OwnerRef.Login
	}
	return &detail, nil
}

type gitlabClient struct {
	host *models.Host
}

func (c *gitlabClient) Kind() string { return "gitlab" }

func (c *gitlabClient) IssueURL(repo *models.Repository, issue *models.Issue) string {
	kind := "issues"
	if issue.PullRequest {
		kind = "merge_requests"
	}
	return fmt.Sprintf("%s/%s/-/%s/%d", strings.TrimRight(c.host.URL, "/"), repo.FullName, kind, issue.Number)
}

func (c *gitlabClient) FetchRepository(ctx context.Context, repo *models.Repository) (*RepositoryDetail, error) {
	return nil, fmt.Errorf("repository detail fetch not supported for gitlab")
}
