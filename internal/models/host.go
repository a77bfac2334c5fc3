package models

import "time"

type Host struct {
	ID                uint64 `gorm:"primaryKey"`
	Name              string `gorm:"type:text;not null;uniqueIndex"`
	URL               string `gorm:"type:text;not null"`
	Kind              string `gorm:"type:text;not null"`
	IconURL           *string
	LastSyncedAt      *time.Time
	RepositoriesCount int `gorm:"not null;default:0"`
	IssuesCount       int `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Host) TableName() string {
	return "hosts"
}
