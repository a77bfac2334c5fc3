package db

import (
	"dependatrack/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Host{},
		&models.Repository{},
		&models.Issue{},
		&models.Package{},
		&models.IssuePackage{},
		&models.Advisory{},
		&models.IssueAdvisory{},
		&models.Import{},
	)
}
