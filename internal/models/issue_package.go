package models

import "time"

// Update types derived from a version change.
const (
	UpdateTypeMajor   = "major"
	UpdateTypeMinor   = "minor"
	UpdateTypePatch   = "patch"
	UpdateTypeRemoval = "removal"
)

// IssuePackage links one issue to one package for a single update. The
// association is immutable after first creation; re-parsing the same
// issue finds it and leaves it alone.
type IssuePackage struct {
	ID          uint64     `gorm:"primaryKey"`
	IssueID     uint64     `gorm:"not null;uniqueIndex:idx_issue_packages_issue_package"`
	PackageID   uint64     `gorm:"not null;index;uniqueIndex:idx_issue_packages_issue_package"`
	OldVersion  *string    `gorm:"type:text"`
	NewVersion  *string    `gorm:"type:text"`
	Path        *string    `gorm:"type:text"`
	UpdateType  *string    `gorm:"type:text"`
	PRCreatedAt *time.Time `gorm:"column:pr_created_at;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (IssuePackage) TableName() string {
	return "issue_packages"
}

func (ip *IssuePackage) VersionChange() string {
	if ip.OldVersion == nil || ip.NewVersion == nil {
		return ""
	}
	return *ip.OldVersion + " -> " + *ip.NewVersion
}
