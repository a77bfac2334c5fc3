package gormrepository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dependatrack/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.sqlite")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Host{},
		&models.Repository{},
		&models.Issue{},
		&models.Package{},
		&models.IssuePackage{},
		&models.Advisory{},
		&models.IssueAdvisory{},
		&models.Import{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return New(db)
}

func ptr[T any](v T) *T { return &v }

func TestImportLedgerRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	exists, err := store.SuccessfulImportExists(ctx, "2024-01-01-5.json.gz")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("unexpected row")
	}

	importedAt := time.Date(2024, 1, 1, 6, 5, 0, 0, time.UTC)
	imp := &models.Import{
		Filename:        "2024-01-01-5.json.gz",
		ImportedAt:      &importedAt,
		DependabotCount: 12,
		Success:         ptr(true),
	}
	if err := store.CreateImport(ctx, imp); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err = store.SuccessfulImportExists(ctx, "2024-01-01-5.json.gz")
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}

	got, err := store.GetImport(ctx, "2024-01-01-5.json.gz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.DependabotCount != 12 {
		t.Fatalf("got=%+v", got)
	}
	if got.ImportedAt == nil || !got.ImportedAt.Equal(importedAt) {
		t.Fatalf("imported_at=%v want %v", got.ImportedAt, importedAt)
	}

	got.Success = ptr(false)
	got.ErrorMessage = ptr("stream broke")
	if err := store.SaveImport(ctx, got); err != nil {
		t.Fatalf("save: %v", err)
	}
	exists, err = store.SuccessfulImportExists(ctx, "2024-01-01-5.json.gz")
	if err != nil || exists {
		t.Fatalf("exists=%v err=%v after failure", exists, err)
	}

	failed, err := store.ListFailedImportsSince(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Filename != "2024-01-01-5.json.gz" {
		t.Fatalf("failed=%+v", failed)
	}
}

func TestFindOrCreateIdempotence(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	host, err := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	again, err := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	if err != nil {
		t.Fatalf("host again: %v", err)
	}
	if host.ID != again.ID {
		t.Fatalf("host ids differ: %d vs %d", host.ID, again.ID)
	}

	repo, err := store.FindOrCreateRepository(ctx, host.ID, "rails/rails")
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	// Case-insensitive identity.
	same, err := store.FindOrCreateRepository(ctx, host.ID, "Rails/Rails")
	if err != nil {
		t.Fatalf("repo case: %v", err)
	}
	if repo.ID != same.ID {
		t.Fatalf("repo ids differ: %d vs %d", repo.ID, same.ID)
	}

	pkg, err := store.FindOrCreatePackage(ctx, "rubygems", "rack")
	if err != nil {
		t.Fatalf("pkg: %v", err)
	}
	dup, err := store.FindOrCreatePackage(ctx, "rubygems", "rack")
	if err != nil {
		t.Fatalf("pkg dup: %v", err)
	}
	if pkg.ID != dup.ID {
		t.Fatalf("pkg ids differ")
	}
	other, err := store.FindOrCreatePackage(ctx, "npm", "rack")
	if err != nil {
		t.Fatalf("pkg other ecosystem: %v", err)
	}
	if other.ID == pkg.ID {
		t.Fatalf("same row for different ecosystems")
	}
}

func TestDuplicateIssueCreateRecovers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	host, _ := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	repo, _ := store.FindOrCreateRepository(ctx, host.ID, "octo/demo")

	first := &models.Issue{
		RepositoryID: repo.ID,
		HostID:       host.ID,
		UUID:         "12345",
		Number:       7,
		User:         "dependabot[bot]",
		PullRequest:  true,
	}
	if err := store.CreateIssue(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same uuid again: the duplicate-key path must hand back the
	// existing row instead of an error.
	second := &models.Issue{
		RepositoryID: repo.ID,
		HostID:       host.ID,
		UUID:         "12345",
		Number:       7,
		User:         "dependabot[bot]",
		PullRequest:  true,
	}
	if err := store.CreateIssue(ctx, second); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("ids differ: %d vs %d", second.ID, first.ID)
	}

	// Two writers can also collide on (repository, number) with
	// different uuids; the loser must get the winner's row back, not an
	// error.
	third := &models.Issue{
		RepositoryID: repo.ID,
		HostID:       host.ID,
		UUID:         "67890",
		Number:       7,
		User:         "dependabot[bot]",
		PullRequest:  true,
	}
	if err := store.CreateIssue(ctx, third); err != nil {
		t.Fatalf("colliding create: %v", err)
	}
	if third.ID != first.ID {
		t.Fatalf("ids differ: %d vs %d", third.ID, first.ID)
	}
	if third.UUID != "12345" {
		t.Fatalf("uuid=%q want the stored row's", third.UUID)
	}
}

func TestIssuePackageAssociationAndCounts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	host, _ := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	repo, _ := store.FindOrCreateRepository(ctx, host.ID, "octo/demo")
	pkg, _ := store.FindOrCreatePackage(ctx, "rubygems", "rack")

	now := time.Now().UTC()
	issue := &models.Issue{
		RepositoryID: repo.ID,
		HostID:       host.ID,
		UUID:         "1",
		Number:       1,
		User:         "dependabot[bot]",
		PullRequest:  true,
		CreatedAt:    &now,
	}
	if err := store.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("issue: %v", err)
	}

	assoc := &models.IssuePackage{IssueID: issue.ID, PackageID: pkg.ID, PRCreatedAt: &now}
	created, err := store.FindOrCreateIssuePackage(ctx, assoc)
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	createdAgain, err := store.FindOrCreateIssuePackage(ctx, &models.IssuePackage{IssueID: issue.ID, PackageID: pkg.ID})
	if err != nil || createdAgain {
		t.Fatalf("createdAgain=%v err=%v", createdAgain, err)
	}

	if err := store.RefreshPackageCounts(ctx, pkg.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	fresh, err := store.FindPackage(ctx, "rubygems", "rack")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fresh.IssuesCount != 1 || fresh.UniqueRepositoriesCount != 1 || fresh.UniqueRepositoriesCountPast30Days != 1 {
		t.Fatalf("counts=%d/%d/%d", fresh.IssuesCount, fresh.UniqueRepositoriesCount, fresh.UniqueRepositoriesCountPast30Days)
	}
}

func TestAdvisoryUpsertAndStats(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	identifiers, _ := json.Marshal([]string{"CVE-2024-1234", "GHSA-aaaa-bbbb-cccc"})
	adv := &models.Advisory{
		UUID:        "adv-1",
		Title:       ptr("rack DoS"),
		Severity:    ptr("HIGH"),
		Identifiers: datatypes.JSON(identifiers),
	}
	if err := store.UpsertAdvisory(ctx, adv); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	update := &models.Advisory{
		UUID:        "adv-1",
		Title:       ptr("rack request smuggling"),
		Severity:    ptr("CRITICAL"),
		Identifiers: datatypes.JSON(identifiers),
	}
	if err := store.UpsertAdvisory(ctx, update); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	got, err := store.GetAdvisoryByUUID(ctx, "adv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title == nil || *got.Title != "rack request smuggling" {
		t.Fatalf("title=%v", got.Title)
	}

	ids, err := store.ListAdvisoryIdentifiers(ctx)
	if err != nil {
		t.Fatalf("identifiers: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("identifiers=%v", ids)
	}

	host, _ := store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	repo, _ := store.FindOrCreateRepository(ctx, host.ID, "octo/demo")
	now := time.Now().UTC()
	merged := &models.Issue{
		RepositoryID: repo.ID, HostID: host.ID, UUID: "1", Number: 1,
		User: "dependabot[bot]", PullRequest: true, MergedAt: &now,
	}
	open := &models.Issue{
		RepositoryID: repo.ID, HostID: host.ID, UUID: "2", Number: 2,
		User: "dependabot[bot]", PullRequest: true,
	}
	if err := store.CreateIssue(ctx, merged); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := store.CreateIssue(ctx, open); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := store.FindOrCreateIssueAdvisory(ctx, merged.ID, got.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := store.FindOrCreateIssueAdvisory(ctx, open.ID, got.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	// Repeat link is a no-op.
	created, err := store.FindOrCreateIssueAdvisory(ctx, open.ID, got.ID)
	if err != nil || created {
		t.Fatalf("created=%v err=%v", created, err)
	}

	if err := store.RefreshAdvisoryStats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}
	got, err = store.GetAdvisoryByUUID(ctx, "adv-1")
	if err != nil {
		t.Fatalf("get after stats: %v", err)
	}
	if got.IssuesCount != 2 {
		t.Fatalf("issues_count=%d want 2", got.IssuesCount)
	}
	if got.MergeRate.String() != "50" {
		t.Fatalf("merge_rate=%s want 50", got.MergeRate.String())
	}
}
