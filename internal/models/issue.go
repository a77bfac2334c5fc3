package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Issue is a pull request (or its comment thread) as seen in the archive.
// It is unique globally by the platform-supplied uuid and unique per
// (repository, number). CreatedAt/UpdatedAt carry the upstream PR
// timestamps, not row timestamps, so gorm's auto-stamping is disabled;
// UpdatedAt is the watermark for the stale-event guard.
type Issue struct {
	ID                 uint64  `gorm:"primaryKey"`
	RepositoryID       uint64  `gorm:"not null;uniqueIndex:idx_issues_repository_number"`
	HostID             uint64  `gorm:"not null;index"`
	UUID               string  `gorm:"column:uuid;type:text;not null;uniqueIndex"`
	NodeID             *string `gorm:"type:text"`
	Number             int     `gorm:"not null;uniqueIndex:idx_issues_repository_number"`
	State              *string `gorm:"type:text"`
	Title              *string `gorm:"type:text"`
	Body               *string `gorm:"type:text"`
	User               string  `gorm:"type:text;index"`
	Labels             datatypes.JSON
	Assignees          datatypes.JSON
	AuthorAssociation  *string `gorm:"type:text"`
	Locked             *bool
	Draft              *bool
	CommentsCount      *int
	PullRequest        bool       `gorm:"not null;default:false"`
	CreatedAt          *time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          *time.Time `gorm:"index;autoUpdateTime:false"`
	ClosedAt           *time.Time
	MergedAt           *time.Time
	MergedBy           *string `gorm:"type:text"`
	ClosedBy           *string `gorm:"type:text"`
	TimeToClose        *int64
	DependencyMetadata datatypes.JSON
}

func (Issue) TableName() string {
	return "issues"
}

func (i *Issue) Bot() bool {
	return strings.HasSuffix(i.User, "[bot]")
}

func (i *Issue) Merged() bool {
	return i.PullRequest && i.MergedAt != nil
}

func (i *Issue) BodyText() string {
	if i.Body == nil {
		return ""
	}
	return *i.Body
}

func (i *Issue) TitleText() string {
	if i.Title == nil {
		return ""
	}
	return *i.Title
}

// LabelNames decodes the stored labels column. Malformed or empty
// content yields no labels rather than an error.
func (i *Issue) LabelNames() []string {
	if len(i.Labels) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(i.Labels, &names); err != nil {
		return nil
	}
	return names
}
