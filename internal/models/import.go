package models

import (
	"fmt"
	"time"
)

// Import is the per-hour ledger row. One row per archive filename; the
// unique index on filename is what makes replays idempotent.
type Import struct {
	ID                 uint64 `gorm:"primaryKey"`
	Filename           string `gorm:"type:text;not null;uniqueIndex"`
	ImportedAt         *time.Time
	DependabotCount    int `gorm:"not null;default:0"`
	PRCount            int `gorm:"column:pr_count;not null;default:0"`
	CommentCount       int `gorm:"not null;default:0"`
	ReviewCount        int `gorm:"not null;default:0"`
	ReviewCommentCount int `gorm:"not null;default:0"`
	ReviewThreadCount  int `gorm:"not null;default:0"`
	CreatedCount       int `gorm:"not null;default:0"`
	UpdatedCount       int `gorm:"not null;default:0"`
	Success            *bool
	ErrorMessage       *string `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Import) TableName() string {
	return "imports"
}

// FilenameForHour renders the archive filename for an hour, e.g.
// "2024-01-01-14.json.gz". Month and day are zero padded, the hour is not.
func FilenameForHour(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d-%02d-%d.json.gz", t.Year(), t.Month(), t.Day(), t.Hour())
}

// HourForFilename parses an archive filename back into its UTC hour.
func HourForFilename(filename string) (time.Time, error) {
	var year, month, day, hour int
	if _, err := fmt.Sscanf(filename, "%d-%d-%d-%d.json.gz", &year, &month, &day, &hour); err != nil {
		return time.Time{}, fmt.Errorf("parse archive filename %q: %w", filename, err)
	}
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC), nil
}

func (i *Import) Hour() (time.Time, error) {
	return HourForFilename(i.Filename)
}
