package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dependatrack/internal/models"
	"dependatrack/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Import ledger ----------------------------------------------------------

func (s *Store) GetImport(ctx context.Context, filename string) (*models.Import, error) {
	var imp models.Import
	err := s.db.WithContext(ctx).Where("filename = ?", filename).First(&imp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

func (s *Store) SuccessfulImportExists(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Import{}).
		Where("filename = ? AND success = ?", filename, true).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ImportExists(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Import{}).
		Where("filename = ?", filename).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateImport(ctx context.Context, imp *models.Import) error {
	return s.db.WithContext(ctx).Create(imp).Error
}

func (s *Store) SaveImport(ctx context.Context, imp *models.Import) error {
	return s.db.WithContext(ctx).Save(imp).Error
}

func (s *Store) ListImports(ctx context.Context, limit int) ([]models.Import, error) {
	if limit <= 0 {
		limit = 200
	}
	var items []models.Import
	err := s.db.WithContext(ctx).
		Order("filename DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s *Store) ListFailedImportsSince(ctx context.Context, since time.Time) ([]models.Import, error) {
	var items []models.Import
	err := s.db.WithContext(ctx).
		Where("success = ?", false).
		Where("created_at >= ?", since).
		Order("filename ASC").
		Find(&items).Error
	return items, err
}

// --- Hosts and repositories -------------------------------------------------

func (s *Store) FindOrCreateHost(ctx context.Context, name, url, kind string) (*models.Host, error) {
	var host models.Host
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&host).Error
	if err == nil {
		return &host, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	host = models.Host{Name: name, URL: url, Kind: kind}
	err = s.db.WithContext(ctx).Create(&host).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing models.Host
		if err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *Store) GetHostByID(ctx context.Context, id uint64) (*models.Host, error) {
	var host models.Host
	err := s.db.WithContext(ctx).First(&host, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *Store) FindRepository(ctx context.Context, hostID uint64, fullName string) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.WithContext(ctx).
		Where("host_id = ? AND lower(full_name) = lower(?)", hostID, fullName).
		First(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (s *Store) FindOrCreateRepository(ctx context.Context, hostID uint64, fullName string) (*models.Repository, error) {
	repo, err := s.FindRepository(ctx, hostID, fullName)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		return repo, nil
	}
	created := models.Repository{HostID: hostID, FullName: fullName}
	err = s.db.WithContext(ctx).Create(&created).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.FindRepository(ctx, hostID, fullName)
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) SaveRepository(ctx context.Context, repo *models.Repository) error {
	return s.db.WithContext(ctx).Save(repo).Error
}

func (s *Store) ListRepositoriesNeedingSync(ctx context.Context, before time.Time, limit int) ([]models.Repository, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.Repository
	err := s.db.WithContext(ctx).
		Where("last_synced_at IS NULL OR last_synced_at < ?", before).
		Where("status IS NULL OR status != ?", models.RepositoryStatusNotFound).
		Order("last_synced_at ASC NULLS FIRST").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// --- Issues -----------------------------------------------------------------

func (s *Store) GetIssueByUUID(ctx context.Context, uuid string) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *Store) GetIssue(ctx context.Context, repositoryID uint64, number int) (*models.Issue, error) {
	var issue models.Issue
	err := s.db.WithContext(ctx).
		Where("repository_id = ? AND number = ?", repositoryID, number).
		First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *Store) CreateIssue(ctx context.Context, issue *models.Issue) error {
	err := s.db.WithContext(ctx).Create(issue).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := s.GetIssueByUUID(ctx, issue.UUID)
		if ferr != nil {
			return ferr
		}
		if existing == nil {
			// The collision can also be on (repository, number) with a
			// different uuid; whoever wrote first keeps the row.
			existing, ferr = s.GetIssue(ctx, issue.RepositoryID, issue.Number)
			if ferr != nil {
				return ferr
			}
		}
		if existing != nil {
			*issue = *existing
			return nil
		}
	}
	return err
}

func (s *Store) SaveIssue(ctx context.Context, issue *models.Issue) error {
	return s.db.WithContext(ctx).Save(issue).Error
}

func (s *Store) UpdateIssueColumns(ctx context.Context, issueID uint64, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ?", issueID).
		Updates(columns).Error
}

// --- Packages ---------------------------------------------------------------

func (s *Store) FindPackage(ctx context.Context, ecosystem, name string) (*models.Package, error) {
	var pkg models.Package
	err := s.db.WithContext(ctx).
		Where("ecosystem = ? AND name = ?", ecosystem, name).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *Store) ListPackages(ctx context.Context, ecosystem string, limit int) ([]models.Package, error) {
	if limit <= 0 {
		limit = 200
	}
	query := s.db.WithContext(ctx).Model(&models.Package{})
	if ecosystem != "" {
		query = query.Where("ecosystem = ?", ecosystem)
	}
	var items []models.Package
	err := query.Order("issues_count DESC").Limit(limit).Find(&items).Error
	return items, err
}

func (s *Store) FindOrCreatePackage(ctx context.Context, ecosystem, name string) (*models.Package, error) {
	pkg, err := s.FindPackage(ctx, ecosystem, name)
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		return pkg, nil
	}
	created := models.Package{Ecosystem: ecosystem, Name: name}
	err = s.db.WithContext(ctx).Create(&created).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.FindPackage(ctx, ecosystem, name)
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) FirstPackageByRepositoryURL(ctx context.Context, repositoryURL string) (*models.Package, error) {
	var pkg models.Package
	err := s.db.WithContext(ctx).
		Where("lower(repository_url) = lower(?)", repositoryURL).
		Order("id ASC").
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *Store) SavePackage(ctx context.Context, pkg *models.Package) error {
	return s.db.WithContext(ctx).Save(pkg).Error
}

func (s *Store) ListPackagesNeedingEnrichment(ctx context.Context, limit int) ([]models.Package, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.Package
	err := s.db.WithContext(ctx).
		Where("last_enriched_at IS NULL").
		Order("issues_count DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// RefreshPackageCounts recomputes the denormalized counters for one
// package from its associations. Plain correlated subqueries so the
// same statement runs on postgres and sqlite.
func (s *Store) RefreshPackageCounts(ctx context.Context, packageID uint64) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	return s.db.WithContext(ctx).Exec(`
		UPDATE packages SET
			issues_count = (
				SELECT COUNT(*) FROM issue_packages
				WHERE issue_packages.package_id = packages.id
			),
			unique_repositories_count = (
				SELECT COUNT(DISTINCT issues.repository_id)
				FROM issue_packages
				JOIN issues ON issues.id = issue_packages.issue_id
				WHERE issue_packages.package_id = packages.id
			),
			unique_repositories_count_past_30_days = (
				SELECT COUNT(DISTINCT issues.repository_id)
				FROM issue_packages
				JOIN issues ON issues.id = issue_packages.issue_id
				WHERE issue_packages.package_id = packages.id
				  AND issues.created_at > ?
			)
		WHERE packages.id = ?`, cutoff, packageID).Error
}

func (s *Store) FindOrCreateIssuePackage(ctx context.Context, assoc *models.IssuePackage) (bool, error) {
	var existing models.IssuePackage
	err := s.db.WithContext(ctx).
		Where("issue_id = ? AND package_id = ?", assoc.IssueID, assoc.PackageID).
		First(&existing).Error
	if err == nil {
		*assoc = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	err = s.db.WithContext(ctx).Create(assoc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if ferr := s.db.WithContext(ctx).
			Where("issue_id = ? AND package_id = ?", assoc.IssueID, assoc.PackageID).
			First(&existing).Error; ferr != nil {
			return false, ferr
		}
		*assoc = existing
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Advisories -------------------------------------------------------------

func (s *Store) UpsertAdvisory(ctx context.Context, advisory *models.Advisory) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"url",
			"title",
			"description",
			"origin",
			"severity",
			"published_at",
			"withdrawn_at",
			"classification",
			"cvss_score",
			"cvss_vector",
			"epss_percentage",
			"epss_percentile",
			"source_kind",
			"identifiers",
			"references",
			"repository_url",
			"packages",
			"updated_at",
		}),
	}).Create(advisory).Error
}

func (s *Store) GetAdvisoryByUUID(ctx context.Context, uuid string) (*models.Advisory, error) {
	var adv models.Advisory
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&adv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &adv, nil
}

func (s *Store) ListAdvisoryIdentifiers(ctx context.Context) ([]repository.AdvisoryIdentifier, error) {
	var advisories []models.Advisory
	err := s.db.WithContext(ctx).
		Select("id", "identifiers").
		Where("withdrawn_at IS NULL").
		Find(&advisories).Error
	if err != nil {
		return nil, err
	}
	var out []repository.AdvisoryIdentifier
	for _, adv := range advisories {
		for _, identifier := range adv.IdentifierList() {
			if identifier == "" {
				continue
			}
			out = append(out, repository.AdvisoryIdentifier{
				AdvisoryID: adv.ID,
				Identifier: identifier,
			})
		}
	}
	return out, nil
}

func (s *Store) ListAdvisories(ctx context.Context, limit int) ([]models.Advisory, error) {
	if limit <= 0 {
		limit = 200
	}
	var items []models.Advisory
	err := s.db.WithContext(ctx).
		Order("published_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s *Store) FindOrCreateIssueAdvisory(ctx context.Context, issueID, advisoryID uint64) (bool, error) {
	var existing models.IssueAdvisory
	err := s.db.WithContext(ctx).
		Where("issue_id = ? AND advisory_id = ?", issueID, advisoryID).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	assoc := models.IssueAdvisory{IssueID: issueID, AdvisoryID: advisoryID}
	err = s.db.WithContext(ctx).Create(&assoc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RefreshAdvisoryStats recomputes merge rates for every advisory that
// has at least one linked pull request.
func (s *Store) RefreshAdvisoryStats(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(`
		UPDATE advisories SET
			issues_count = (
				SELECT COUNT(*) FROM issue_advisories
				WHERE issue_advisories.advisory_id = advisories.id
			),
			merge_rate = (
				SELECT CASE WHEN COUNT(*) = 0 THEN 0
					ELSE ROUND(100.0 * SUM(CASE WHEN issues.merged_at IS NOT NULL THEN 1 ELSE 0 END) / COUNT(*), 2)
				END
				FROM issue_advisories
				JOIN issues ON issues.id = issue_advisories.issue_id
				WHERE issue_advisories.advisory_id = advisories.id
			)
		WHERE advisories.id IN (SELECT DISTINCT advisory_id FROM issue_advisories)`).Error
}
