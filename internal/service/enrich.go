package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dependatrack/internal/client/packagemeta"
	"dependatrack/internal/hosts"
	"dependatrack/internal/models"
	"dependatrack/internal/repository"
)

// EnrichService fills in external detail the archive stream cannot
// provide: package registry metadata and repository state on the host.
// Each run is bounded by a wall-clock budget and paced by a fixed delay
// between outbound calls.
type EnrichService struct {
	Store      repository.Store
	Packages   *packagemeta.Client
	HTTPClient *http.Client
	Logger     *zap.Logger

	Budget    time.Duration
	CallDelay time.Duration
	BatchSize int
}

type EnrichResult struct {
	PackagesEnriched     int  `json:"packages_enriched"`
	PackagesMissing      int  `json:"packages_missing"`
	RepositoriesSynced   int  `json:"repositories_synced"`
	RepositoriesNotFound int  `json:"repositories_not_found"`
	BudgetExhausted      bool `json:"budget_exhausted"`
}

// Run enriches never-enriched packages first, then syncs stale
// repositories with whatever budget remains.
func (s *EnrichService) Run(ctx context.Context) (EnrichResult, error) {
	budget := s.Budget
	if budget <= 0 {
		budget = 5 * time.Minute
	}
	deadline := time.Now().Add(budget)
	result := EnrichResult{}

	if err := s.enrichPackages(ctx, deadline, &result); err != nil {
		return result, err
	}
	if err := s.syncRepositories(ctx, deadline, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *EnrichService) enrichPackages(ctx context.Context, deadline time.Time, result *EnrichResult) error {
	batch := s.BatchSize
	if batch <= 0 {
		batch = 100
	}
	packages, err := s.Store.ListPackagesNeedingEnrichment(ctx, batch)
	if err != nil {
		return err
	}
	for i := range packages {
		if time.Now().After(deadline) {
			result.BudgetExhausted = true
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pkg := &packages[i]
		if err := s.enrichPackage(ctx, pkg); err != nil {
			s.Logger.Warn("package enrichment failed",
				zap.String("package", pkg.String()),
				zap.Error(err))
		} else if pkg.RepositoryURL != nil {
			result.PackagesEnriched++
		} else {
			result.PackagesMissing++
		}
		s.pause(ctx)
	}
	return nil
}

func (s *EnrichService) enrichPackage(ctx context.Context, pkg *models.Package) error {
	purl := pkg.Purl()
	if purl == "" {
		// Unknown purl type; mark it done so the batch moves on.
		pkg.LastEnrichedAt = ptr(time.Now().UTC())
		return s.Store.SavePackage(ctx, pkg)
	}
	remote, err := s.Packages.LookupPurl(ctx, purl)
	if err != nil {
		return err
	}
	pkg.LastEnrichedAt = ptr(time.Now().UTC())
	if remote != nil {
		pkg.RepositoryURL = remote.RepositoryURL
		if len(remote.Latest) > 0 {
			pkg.Metadata = datatypes.JSON(remote.Latest)
		}
	}
	return s.Store.SavePackage(ctx, pkg)
}

func (s *EnrichService) syncRepositories(ctx context.Context, deadline time.Time, result *EnrichResult) error {
	batch := s.BatchSize
	if batch <= 0 {
		batch = 100
	}
	stale := time.Now().UTC().AddDate(0, 0, -7)
	repos, err := s.Store.ListRepositoriesNeedingSync(ctx, stale, batch)
	if err != nil {
		return err
	}
	for i := range repos {
		if time.Now().After(deadline) {
			result.BudgetExhausted = true
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		repo := &repos[i]
		notFound, err := s.syncRepository(ctx, repo)
		if err != nil {
			s.Logger.Warn("repository sync failed",
				zap.String("repository", repo.FullName),
				zap.Error(err))
		} else if notFound {
			result.RepositoriesNotFound++
		} else {
			result.RepositoriesSynced++
		}
		s.pause(ctx)
	}
	return nil
}

func (s *EnrichService) syncRepository(ctx context.Context, repo *models.Repository) (bool, error) {
	host, err := s.hostFor(ctx, repo)
	if err != nil {
		return false, err
	}
	client, err := hosts.For(host, s.HTTPClient)
	if err != nil {
		return false, err
	}
	detail, err := client.FetchRepository(ctx, repo)
	repo.LastSyncedAt = ptr(time.Now().UTC())
	if errors.Is(err, hosts.ErrNotFound) {
		repo.Status = ptr(models.RepositoryStatusNotFound)
		if saveErr := s.Store.SaveRepository(ctx, repo); saveErr != nil {
			return true, saveErr
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	repo.Status = ptr(models.RepositoryStatusActive)
	if detail != nil {
		if detail.DefaultBranch != "" {
			repo.DefaultBranch = ptr(detail.DefaultBranch)
		}
		if detail.Owner != "" {
			repo.Owner = detail.Owner
		}
	}
	return false, s.Store.SaveRepository(ctx, repo)
}

func (s *EnrichService) hostFor(ctx context.Context, repo *models.Repository) (*models.Host, error) {
	host, err := s.Store.GetHostByID(ctx, repo.HostID)
	if err != nil {
		return nil, err
	}
	if host == nil {
		return nil, errors.New("repository has no host row")
	}
	return host, nil
}

func (s *EnrichService) pause(ctx context.Context) {
	delay := s.CallDelay
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
