package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dependatrack/internal/client/packagemeta"
	"dependatrack/internal/dependabot"
	"dependatrack/internal/models"
	"dependatrack/internal/repository"
)

// MetadataService turns a stored pull request into structured update
// records: parse the title and body, settle on an ecosystem, and attach
// package rows.
type MetadataService struct {
	Store    repository.Store
	Packages *packagemeta.Client
	Logger   *zap.Logger
}

// Apply parses the issue and persists its dependency metadata. It
// returns the ids of every package row it touched so the caller can
// refresh counters once per run instead of once per event.
func (s *MetadataService) Apply(ctx context.Context, issue *models.Issue, repo *models.Repository) ([]uint64, error) {
	meta := dependabot.Parse(issue.TitleText(), issue.BodyText())
	if meta == nil {
		if issue.DependencyMetadata != nil {
			if err := s.Store.UpdateIssueColumns(ctx, issue.ID, map[string]any{"dependency_metadata": nil}); err != nil {
				return nil, err
			}
			issue.DependencyMetadata = nil
		}
		return nil, nil
	}

	meta.Ecosystem = s.inferEcosystem(ctx, issue, repo, meta)

	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := s.Store.UpdateIssueColumns(ctx, issue.ID, map[string]any{"dependency_metadata": datatypes.JSON(encoded)}); err != nil {
		return nil, err
	}
	issue.DependencyMetadata = encoded

	// An unknown or unsupported ecosystem still gets its metadata stored;
	// only the package associations require a resolvable ecosystem.
	if !dependabot.SupportedEcosystem(meta.Ecosystem) {
		return nil, nil
	}

	var touched []uint64
	for _, update := range meta.Packages {
		name := strings.ToLower(dependabot.NormalizeName(update.Name))
		if name == "" {
			continue
		}
		pkg, err := s.Store.FindOrCreatePackage(ctx, meta.Ecosystem, name)
		if err != nil {
			return touched, err
		}
		assoc := models.IssuePackage{
			IssueID:     issue.ID,
			PackageID:   pkg.ID,
			PRCreatedAt: issue.CreatedAt,
		}
		if update.OldVersion != "" {
			assoc.OldVersion = ptr(update.OldVersion)
		}
		if update.NewVersion != "" {
			assoc.NewVersion = ptr(update.NewVersion)
		}
		if meta.Path != "" {
			assoc.Path = ptr(meta.Path)
		}
		if update.Removal {
			assoc.UpdateType = ptr(models.UpdateTypeRemoval)
		} else {
			assoc.UpdateType = dependabot.ClassifyUpdate(update.OldVersion, update.NewVersion)
		}
		if _, err := s.Store.FindOrCreateIssuePackage(ctx, &assoc); err != nil {
			return touched, err
		}
		touched = append(touched, pkg.ID)
	}
	return touched, nil
}

// inferEcosystem resolves the ecosystem for a parsed update. Labels win,
// then the manifest path, then a package already known to live at this
// repository, then a remote lookup as a best-effort last step.
func (s *MetadataService) inferEcosystem(ctx context.Context, issue *models.Issue, repo *models.Repository, meta *dependabot.Metadata) string {
	if eco := dependabot.EcosystemForLabels(issue.LabelNames()); eco != "" {
		return eco
	}
	if eco := dependabot.EcosystemForPath(meta.Path); eco != "" {
		return eco
	}
	if repo == nil {
		return ""
	}
	repoURL := "https://github.com/" + repo.FullName
	if pkg, err := s.Store.FirstPackageByRepositoryURL(ctx, repoURL); err == nil && pkg != nil {
		return pkg.Ecosystem
	}
	if s.Packages == nil {
		return ""
	}
	remote, err := s.Packages.LookupRepositoryURL(ctx, repoURL)
	if err != nil {
		s.Logger.Debug("ecosystem lookup failed",
			zap.String("repository", repo.FullName),
			zap.Error(err))
		return ""
	}
	if remote == nil {
		return ""
	}
	if dependabot.SupportedEcosystem(remote.Ecosystem) {
		return remote.Ecosystem
	}
	return models.EcosystemForPurlType(remote.Ecosystem)
}

func ptr[T any](v T) *T {
	return &v
}
