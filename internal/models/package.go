package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Package is unique by (ecosystem, name). Counters are recomputed after
// each import batch that touches the package.
type Package struct {
	ID                                uint64  `gorm:"primaryKey"`
	Name                              string  `gorm:"type:text;not null;uniqueIndex:idx_packages_ecosystem_name"`
	Ecosystem                         string  `gorm:"type:text;not null;uniqueIndex:idx_packages_ecosystem_name"`
	RepositoryURL                     *string `gorm:"type:text;index"`
	Metadata                          datatypes.JSON
	IssuesCount                       int `gorm:"not null;default:0;index"`
	UniqueRepositoriesCount           int `gorm:"not null;default:0;index"`
	UniqueRepositoriesCountPast30Days int `gorm:"column:unique_repositories_count_past_30_days;not null;default:0"`
	LastEnrichedAt                    *time.Time
	CreatedAt                         time.Time
	UpdatedAt                         time.Time
}

func (Package) TableName() string {
	return "packages"
}

// ecosystemToPurlType maps ecosystem names onto package-URL types, per
// the PURL type registry. Ecosystems without an entry have no purl.
var ecosystemToPurlType = map[string]string{
	"npm":        "npm",
	"rubygems":   "gem",
	"pip":        "pypi",
	"go":         "golang",
	"maven":      "maven",
	"gradle":     "maven",
	"nuget":      "nuget",
	"cargo":      "cargo",
	"docker":     "docker",
	"hex":        "hex",
	"packagist":  "composer",
	"pub":        "pub",
	"terraform":  "terraform",
	"actions":    "github",
	"elm":        "elm",
	"swift":      "swift",
	"cocoapods":  "cocoapods",
	"carthage":   "carthage",
	"conda":      "conda",
	"helm":       "helm",
	"kubernetes": "k8s",
}

// purlTypeToEcosystem is the reverse of ecosystemToPurlType, spelled
// out because two ecosystems (maven, gradle) share one purl type.
var purlTypeToEcosystem = map[string]string{
	"npm":        "npm",
	"gem":        "rubygems",
	"pypi":       "pip",
	"golang":     "go",
	"maven":      "maven",
	"nuget":      "nuget",
	"cargo":      "cargo",
	"docker":     "docker",
	"hex":        "hex",
	"composer":   "packagist",
	"pub":        "pub",
	"terraform":  "terraform",
	"github":     "actions",
	"elm":        "elm",
	"swift":      "swift",
	"cocoapods":  "cocoapods",
	"carthage":   "carthage",
	"conda":      "conda",
	"helm":       "helm",
	"k8s":        "kubernetes",
}

func (p *Package) PurlType() string {
	return ecosystemToPurlType[p.Ecosystem]
}

// Purl builds the package URL, or "" for an ecosystem with no purl
// type; those packages skip registry enrichment.
func (p *Package) Purl() string {
	typ := p.PurlType()
	if typ == "" {
		return ""
	}
	return fmt.Sprintf("pkg:%s/%s", typ, p.Name)
}

// EcosystemForPurlType is the reverse mapping, used when resolving
// external package-metadata lookups back into ecosystem names.
func EcosystemForPurlType(purlType string) string {
	if eco, ok := purlTypeToEcosystem[purlType]; ok {
		return eco
	}
	return purlType
}

func (p *Package) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Ecosystem)
}
