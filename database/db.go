package database

import (
	"fmt"

	"link-reward-system/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the postgres connection and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema; shared with the sqlite test setup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ShortLink{},
		&models.ClickEvent{},
		&models.RewardTier{},
		&models.AnalyticsRollup{},
		&models.Referral{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
