package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"dependatrack/internal/dependabot"
	"dependatrack/internal/models"
	gormrepository "dependatrack/internal/repository/gorm"
)

func seedIssue(t *testing.T, store *gormrepository.Store, title, body string, labels []string) (*models.Issue, *models.Repository) {
	t.Helper()
	ctx := context.Background()
	host, err := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	repo, err := store.FindOrCreateRepository(ctx, host.ID, "octo/demo")
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	now := time.Now().UTC()
	issue := &models.Issue{
		RepositoryID: repo.ID,
		HostID:       host.ID,
		UUID:         "seed-" + title,
		Number:       int(now.UnixNano() % 1_000_000),
		User:         "dependabot[bot]",
		PullRequest:  true,
		Title:        &title,
		CreatedAt:    &now,
	}
	if body != "" {
		issue.Body = &body
	}
	if len(labels) > 0 {
		encoded, _ := json.Marshal(labels)
		issue.Labels = encoded
	}
	if err := store.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("issue: %v", err)
	}
	return issue, repo
}

func TestMetadataApply_LabelsDriveEcosystem(t *testing.T) {
	store := setupStore(t)
	svc := &MetadataService{Store: store, Logger: zap.NewNop()}

	issue, repo := seedIssue(t, store, "Bump rack from 2.2.16 to 2.2.17", "", []string{"dependencies", "ruby"})
	touched, err := svc.Apply(context.Background(), issue, repo)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(touched) != 1 {
		t.Fatalf("touched=%v", touched)
	}

	pkg, err := store.FindPackage(context.Background(), "rubygems", "rack")
	if err != nil || pkg == nil {
		t.Fatalf("package missing: %v", err)
	}

	var meta dependabot.Metadata
	if err := json.Unmarshal(issue.DependencyMetadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Ecosystem != "rubygems" || meta.Prefix != "Bump" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestMetadataApply_PathDrivesEcosystem(t *testing.T) {
	store := setupStore(t)
	svc := &MetadataService{Store: store, Logger: zap.NewNop()}

	issue, repo := seedIssue(t, store, "Bump actions/checkout from 3.0.0 to 4.0.0 in /.github/workflows", "", nil)
	if _, err := svc.Apply(context.Background(), issue, repo); err != nil {
		t.Fatalf("apply: %v", err)
	}
	pkg, err := store.FindPackage(context.Background(), "actions", "actions/checkout")
	if err != nil || pkg == nil {
		t.Fatalf("package missing: %v", err)
	}
}

func TestMetadataApply_UpdateTypeClassified(t *testing.T) {
	store := setupStore(t)
	svc := &MetadataService{Store: store, Logger: zap.NewNop()}

	issue, repo := seedIssue(t, store, "Bump rack from 2.2.16 to 3.0.0", "", []string{"ruby"})
	if _, err := svc.Apply(context.Background(), issue, repo); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Re-apply finds the association again rather than duplicating it.
	if _, err := svc.Apply(context.Background(), issue, repo); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	pkg, _ := store.FindPackage(context.Background(), "rubygems", "rack")
	if err := store.RefreshPackageCounts(context.Background(), pkg.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	pkg, _ = store.FindPackage(context.Background(), "rubygems", "rack")
	if pkg.IssuesCount != 1 {
		t.Fatalf("issues_count=%d want 1", pkg.IssuesCount)
	}
}

func TestMetadataApply_UnknownEcosystemStoresMetadataOnly(t *testing.T) {
	store := setupStore(t)
	svc := &MetadataService{Store: store, Logger: zap.NewNop()}

	issue, repo := seedIssue(t, store, "Bump leftorium from 1.0.0 to 2.0.0", "", nil)
	touched, err := svc.Apply(context.Background(), issue, repo)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(touched) != 0 {
		t.Fatalf("touched=%v want none", touched)
	}
	if issue.DependencyMetadata == nil {
		t.Fatalf("metadata not stored")
	}
	pkgs, err := store.ListPackages(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pkgs) != 0 {
		t.Fatalf("packages=%+v want none", pkgs)
	}
}

func TestMetadataApply_NoMatchClearsMetadata(t *testing.T) {
	store := setupStore(t)
	svc := &MetadataService{Store: store, Logger: zap.NewNop()}

	issue, repo := seedIssue(t, store, "Fix typo in README", "", nil)
	issue.DependencyMetadata = []byte(`{"prefix":"stale"}`)
	touched, err := svc.Apply(context.Background(), issue, repo)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(touched) != 0 {
		t.Fatalf("touched=%v", touched)
	}
	if issue.DependencyMetadata != nil {
		t.Fatalf("metadata not cleared")
	}
}
