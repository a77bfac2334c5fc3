package models

import "time"

// IssueAdvisory records that an issue body mentions one of an advisory's
// identifiers. Unique per (issue, advisory).
type IssueAdvisory struct {
	ID         uint64    `gorm:"primaryKey"`
	IssueID    uint64    `gorm:"not null;uniqueIndex:idx_issue_advisories_issue_advisory"`
	AdvisoryID uint64    `gorm:"not null;index;uniqueIndex:idx_issue_advisories_issue_advisory"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

func (IssueAdvisory) TableName() string {
	return "issue_advisories"
}
