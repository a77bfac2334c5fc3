package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Advisory is an externally sourced vulnerability record, refreshed by
// upsert on uuid.
type Advisory struct {
	ID             uint64 `gorm:"primaryKey"`
	UUID           string `gorm:"column:uuid;type:text;not null;uniqueIndex"`
	URL            *string
	Title          *string `gorm:"type:text"`
	Description    *string `gorm:"type:text"`
	Origin         *string
	Severity       *string    `gorm:"type:text;index"`
	PublishedAt    *time.Time `gorm:"index"`
	WithdrawnAt    *time.Time
	Classification *string
	CVSSScore      *float64 `gorm:"column:cvss_score"`
	CVSSVector     *string  `gorm:"column:cvss_vector"`
	References     datatypes.JSON
	SourceKind     *string
	Identifiers    datatypes.JSON
	RepositoryURL  *string `gorm:"type:text;index"`
	BlastRadius    *float64
	Packages       datatypes.JSON
	EPSSPercentage *float64        `gorm:"column:epss_percentage"`
	EPSSPercentile *float64        `gorm:"column:epss_percentile"`
	IssuesCount    int             `gorm:"not null;default:0;index"`
	MergeRate      decimal.Decimal `gorm:"type:numeric(5,2);default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Advisory) TableName() string {
	return "advisories"
}

// AdvisoryPackage is one entry of the structured affected-package list.
type AdvisoryPackage struct {
	Ecosystem   string `json:"ecosystem"`
	PackageName string `json:"package_name"`
}

func (a *Advisory) IdentifierList() []string {
	if len(a.Identifiers) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(a.Identifiers, &ids); err != nil {
		return nil
	}
	return ids
}

func (a *Advisory) PackageList() []AdvisoryPackage {
	if len(a.Packages) == 0 {
		return nil
	}
	var pkgs []AdvisoryPackage
	if err := json.Unmarshal(a.Packages, &pkgs); err != nil {
		return nil
	}
	return pkgs
}

func (a *Advisory) Withdrawn() bool {
	return a.WithdrawnAt != nil
}
