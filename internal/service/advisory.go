package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dependatrack/internal/client/advisories"
	"dependatrack/internal/models"
	"dependatrack/internal/repository"
)

// AdvisoryService keeps the advisory catalog current and links pull
// requests to the advisories their bodies mention.
type AdvisoryService struct {
	Store  repository.Store
	Client *advisories.Client
	Logger *zap.Logger

	PerPage   int
	Ecosystem string
	Severity  string

	mu          sync.Mutex
	identifiers []repository.AdvisoryIdentifier
	loaded      bool
}

type AdvisorySyncResult struct {
	Pages    int `json:"pages"`
	Upserted int `json:"upserted"`
}

// Sync walks the catalog page by page until an empty page or an error.
// Every page already fetched is persisted even when a later page fails.
func (s *AdvisoryService) Sync(ctx context.Context) (AdvisorySyncResult, error) {
	perPage := s.PerPage
	if perPage <= 0 {
		perPage = 1000
	}
	result := AdvisorySyncResult{}
	for page := 1; ; page++ {
		batch, err := s.Client.List(ctx, advisories.ListParams{
			Page:      page,
			PerPage:   perPage,
			Ecosystem: s.Ecosystem,
			Severity:  s.Severity,
		})
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		result.Pages++
		for i := range batch {
			row, err := advisoryRow(&batch[i])
			if err != nil {
				s.Logger.Warn("skipping malformed advisory",
					zap.String("uuid", batch[i].UUID),
					zap.Error(err))
				continue
			}
			if err := s.Store.UpsertAdvisory(ctx, row); err != nil {
				return result, err
			}
			result.Upserted++
		}
		if len(batch) < perPage {
			break
		}
	}
	s.Invalidate()
	return result, nil
}

func advisoryRow(adv *advisories.Advisory) (*models.Advisory, error) {
	identifiers, err := json.Marshal(adv.Identifiers)
	if err != nil {
		return nil, err
	}
	references, err := json.Marshal(adv.References)
	if err != nil {
		return nil, err
	}
	packages := make([]models.AdvisoryPackage, 0, len(adv.Packages))
	for _, pkg := range adv.Packages {
		packages = append(packages, models.AdvisoryPackage{
			Ecosystem:   pkg.Ecosystem,
			PackageName: pkg.PackageName,
		})
	}
	encodedPackages, err := json.Marshal(packages)
	if err != nil {
		return nil, err
	}
	return &models.Advisory{
		UUID:           adv.UUID,
		URL:            adv.URL,
		Title:          adv.Title,
		Description:    adv.Description,
		Origin:         adv.Origin,
		Severity:       adv.Severity,
		PublishedAt:    adv.PublishedAt,
		WithdrawnAt:    adv.WithdrawnAt,
		Classification: adv.Classification,
		CVSSScore:      adv.CVSSScore,
		CVSSVector:     adv.CVSSVector,
		EPSSPercentage: adv.EPSSPercentage,
		EPSSPercentile: adv.EPSSPercentile,
		SourceKind:     adv.SourceKind,
		RepositoryURL:  adv.RepositoryURL,
		BlastRadius:    adv.BlastRadius,
		Identifiers:    datatypes.JSON(identifiers),
		References:     datatypes.JSON(references),
		Packages:       datatypes.JSON(encodedPackages),
	}, nil
}

// LinkIssue scans the body for known advisory identifiers and records
// a link per distinct advisory found. Returns how many links were
// newly created.
func (s *AdvisoryService) LinkIssue(ctx context.Context, issue *models.Issue) (int, error) {
	text := issue.BodyText()
	if text == "" {
		return 0, nil
	}
	ids, err := s.cachedIdentifiers(ctx)
	if err != nil {
		return 0, err
	}
	upper := strings.ToUpper(text)
	seen := map[uint64]bool{}
	created := 0
	for _, id := range ids {
		if seen[id.AdvisoryID] {
			continue
		}
		if id.Identifier == "" || !strings.Contains(upper, strings.ToUpper(id.Identifier)) {
			continue
		}
		seen[id.AdvisoryID] = true
		isNew, err := s.Store.FindOrCreateIssueAdvisory(ctx, issue.ID, id.AdvisoryID)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// RefreshStats recomputes per-advisory counters and merge rates.
func (s *AdvisoryService) RefreshStats(ctx context.Context) error {
	return s.Store.RefreshAdvisoryStats(ctx)
}

// Invalidate drops the identifier cache; the next LinkIssue reloads it.
func (s *AdvisoryService) Invalidate() {
	s.mu.Lock()
	s.identifiers = nil
	s.loaded = false
	s.mu.Unlock()
}

func (s *AdvisoryService) cachedIdentifiers(ctx context.Context) ([]repository.AdvisoryIdentifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.identifiers, nil
	}
	ids, err := s.Store.ListAdvisoryIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	s.identifiers = ids
	s.loaded = true
	return ids, nil
}
