package database

import (
	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. The
// grades and studeaccount tables are registrar/accounting imports in
// production; migrating them here keeps development and test databases
// self-contained.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Credential{},
		&models.RefreshToken{},
		&models.Grade{},
		&models.StudentAccount{},
	)
}
