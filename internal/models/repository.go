package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Repository sync statuses. A repository marked not_found stopped
// resolving on its host and is skipped by the detail sync.
const (
	RepositoryStatusActive   = "active"
	RepositoryStatusNotFound = "not_found"
)

type Repository struct {
	ID                uint64 `gorm:"primaryKey"`
	HostID            uint64 `gorm:"not null;index;uniqueIndex:idx_repositories_host_full_name"`
	FullName          string `gorm:"type:text;not null;uniqueIndex:idx_repositories_host_full_name"`
	Owner             string `gorm:"type:text"`
	DefaultBranch     *string
	Status            *string `gorm:"type:text"`
	Metadata          datatypes.JSON
	LastSyncedAt      *time.Time
	PullRequestsCount int `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Repository) TableName() string {
	return "repositories"
}

// OwnerName is the leading path segment of the full name.
func (r *Repository) OwnerName() string {
	if r.Owner != "" {
		return r.Owner
	}
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}
