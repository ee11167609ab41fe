package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/bikereg/internal/models"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Customer{},
		&models.Dealer{},
		&models.Admin{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedSuperAdmin upserts the super admin row keyed by email. passwordHash
// must already be hashed.
func SeedSuperAdmin(db *gorm.DB, email, passwordHash string) error {
	admin := models.Admin{
		FullName: "Super Admin",
		Email:    email,
		Password: passwordHash,
		Role:     models.RoleSuperAdmin,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password", "role"}),
	}).Create(&admin)
	if result.Error != nil {
		return fmt.Errorf("db: seed super admin %q: %w", email, result.Error)
	}
	return nil
}
