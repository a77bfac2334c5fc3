package repository

import (
	"context"
	"time"

	"dependatrack/internal/models"
)

// AdvisoryIdentifier pairs one free-form identifier with the advisory
// that owns it; the linker's cache is a flat list of these.
type AdvisoryIdentifier struct {
	AdvisoryID uint64
	Identifier string
}

// Store is the persistence surface of the import engine. Every
// find-or-create treats a duplicate-key race as "already exists": the
// existing row is re-fetched and returned.
type Store interface {
	// Ledger.
	GetImport(ctx context.Context, filename string) (*models.Import, error)
	SuccessfulImportExists(ctx context.Context, filename string) (bool, error)
	ImportExists(ctx context.Context, filename string) (bool, error)
	CreateImport(ctx context.Context, imp *models.Import) error
	SaveImport(ctx context.Context, imp *models.Import) error
	ListImports(ctx context.Context, limit int) ([]models.Import, error)
	ListFailedImportsSince(ctx context.Context, since time.Time) ([]models.Import, error)

	// Hosts and repositories.
	FindOrCreateHost(ctx context.Context, name, url, kind string) (*models.Host, error)
	GetHostByID(ctx context.Context, id uint64) (*models.Host, error)
	FindRepository(ctx context.Context, hostID uint64, fullName string) (*models.Repository, error)
	FindOrCreateRepository(ctx context.Context, hostID uint64, fullName string) (*models.Repository, error)
	SaveRepository(ctx context.Context, repo *models.Repository) error
	ListRepositoriesNeedingSync(ctx context.Context, before time.Time, limit int) ([]models.Repository, error)

	// Issues.
	GetIssueByUUID(ctx context.Context, uuid string) (*models.Issue, error)
	GetIssue(ctx context.Context, repositoryID uint64, number int) (*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	SaveIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssueColumns(ctx context.Context, issueID uint64, columns map[string]any) error

	// Packages and associations.
	FindPackage(ctx context.Context, ecosystem, name string) (*models.Package, error)
	ListPackages(ctx context.Context, ecosystem string, limit int) ([]models.Package, error)
	FindOrCreatePackage(ctx context.Context, ecosystem, name string) (*models.Package, error)
	FirstPackageByRepositoryURL(ctx context.Context, repositoryURL string) (*models.Package, error)
	SavePackage(ctx context.Context, pkg *models.Package) error
	ListPackagesNeedingEnrichment(ctx context.Context, limit int) ([]models.Package, error)
	RefreshPackageCounts(ctx context.Context, packageID uint64) error
	FindOrCreateIssuePackage(ctx context.Context, assoc *models.IssuePackage) (created bool, err error)

	// Advisories.
	UpsertAdvisory(ctx context.Context, advisory *models.Advisory) error
	GetAdvisoryByUUID(ctx context.Context, uuid string) (*models.Advisory, error)
	ListAdvisoryIdentifiers(ctx context.Context) ([]AdvisoryIdentifier, error)
	ListAdvisories(ctx context.Context, limit int) ([]models.Advisory, error)
	FindOrCreateIssueAdvisory(ctx context.Context, issueID, advisoryID uint64) (created bool, err error)
	RefreshAdvisoryStats(ctx context.Context) error
}
