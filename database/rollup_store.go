package database

import (
	"context"
	"time"

	"link-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRollupStore struct {
	DB *gorm.DB
}

func NewRollupStore(db *gorm.DB) *GormRollupStore {
	return &GormRollupStore{DB: db}
}

// Replace upserts the team's aggregate rows in one statement keyed on
// (team_id, country, city); counts only grow, so rows never need
// deleting.
func (s *GormRollupStore) Replace(ctx context.Context, teamID string, counts []models.LocationCount, refreshedAt time.Time) error {
	if len(counts) == 0 {
		return nil
	}

	rows := make([]models.AnalyticsRollup, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, models.AnalyticsRollup{
			ID:          uuid.NewString(),
			TeamID:      teamID,
			Country:     c.Country,
			City:        c.City,
			Clicks:      c.Clicks,
			RefreshedAt: refreshedAt,
		})
	}

	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "country"}, {Name: "city"}},
		DoUpdates: clause.AssignmentColumns([]string{"clicks", "refreshed_at"}),
	}).Create(&rows).Error
}

func (s *GormRollupStore) ForTeam(ctx context.Context, teamID string) ([]models.AnalyticsRollup, error) {
	var rollups []models.AnalyticsRollup
	err := s.DB.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("clicks DESC").
		Find(&rollups).Error
	if err != nil {
		return nil, err
	}
	return rollups, nil
}
