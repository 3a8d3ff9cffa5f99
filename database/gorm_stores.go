package database

import (
	"context"
	"errors"
	"fmt"

	"link-reward-system/models"
	"link-reward-system/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORM-backed implementations of the service capability interfaces.

type GormShortLinkStore struct {
	DB *gorm.DB
}

func NewShortLinkStore(db *gorm.DB) *GormShortLinkStore {
	return &GormShortLinkStore{DB: db}
}

func (s *GormShortLinkStore) Create(ctx context.Context, link *models.ShortLink) error {
	return s.DB.WithContext(ctx).Create(link).Error
}

func (s *GormShortLinkStore) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	var link models.ShortLink
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *GormShortLinkStore) ByID(ctx context.Context, id string) (*models.ShortLink, error) {
	var link models.ShortLink
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *GormShortLinkStore) ByScope(ctx context.Context, scope services.Scope) ([]models.ShortLink, error) {
	q := s.DB.WithContext(ctx).Where("team_id = ?", scope.TeamID)
	if scope.UserID != nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	var links []models.ShortLink
	if err := q.Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (s *GormShortLinkStore) Deactivate(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.ShortLink{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrLinkNotFound
	}
	return nil
}

func (s *GormShortLinkStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.ShortLink{}).
		Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormShortLinkStore) TemplatesForTeam(ctx context.Context, teamID string) ([]models.ShortLink, error) {
	var links []models.ShortLink
	err := s.DB.WithContext(ctx).
		Where("team_id = ? AND is_template = ? AND active = ?", teamID, true, true).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (s *GormShortLinkStore) ClickTotalsForUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.ShortLink{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(click_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

type GormClickEventStore struct {
	DB *gorm.DB
}

func NewClickEventStore(db *gorm.DB) *GormClickEventStore {
	return &GormClickEventStore{DB: db}
}

// AppendAndCount inserts the event and bumps the link counter in one
// transaction. The event ID is the idempotency token: a conflicting
// insert affects zero rows and skips the increment, so a background
// retry of an already-recorded click never double-counts. The
// increment itself is a SQL-side atomic add, never read-modify-write.
func (s *GormClickEventStore) AppendAndCount(ctx context.Context, event *models.ClickEvent) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return fmt.Errorf("failed to append click event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Duplicate delivery of the same click; already counted.
			return nil
		}
		return tx.Model(&models.ShortLink{}).
			Where("id = ?", event.ShortLinkID).
			UpdateColumn("click_count", gorm.Expr("click_count + ?", 1)).Error
	})
}

func (s *GormClickEventStore) scoped(ctx context.Context, scope services.Scope, tr services.TimeRange) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&models.ClickEvent{}).
		Where("click_events.team_id = ?", scope.TeamID)
	if scope.UserID != nil {
		q = q.Joins("JOIN short_links ON short_links.id = click_events.short_link_id").
			Where("short_links.user_id = ?", *scope.UserID)
	}
	if !tr.From.IsZero() {
		q = q.Where("click_events.clicked_at >= ?", tr.From)
	}
	if !tr.To.IsZero() {
		q = q.Where("click_events.clicked_at < ?", tr.To)
	}
	return q
}

func (s *GormClickEventStore) LocationCounts(ctx context.Context, scope services.Scope, tr services.TimeRange) ([]models.LocationCount, error) {
	var counts []models.LocationCount
	// NULL location fields group under the explicit unknown bucket;
	// GROUP BY treats NULLs as one group, so grouping on the raw
	// columns keeps them together.
	err := s.scoped(ctx, scope, tr).
		Select("COALESCE(click_events.country, ?) AS country, COALESCE(click_events.city, ?) AS city, COUNT(*) AS clicks",
			models.UnknownLocation, models.UnknownLocation).
		Group("click_events.country, click_events.city").
		Order("clicks DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *GormClickEventStore) LinkCounts(ctx context.Context, scope services.Scope, tr services.TimeRange) ([]models.LinkCount, error) {
	var counts []models.LinkCount
	err := s.scoped(ctx, scope, tr).
		Select("click_events.code AS code, COUNT(*) AS clicks").
		Group("click_events.code").
		Order("clicks DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *GormClickEventStore) EventsForCode(ctx context.Context, scope services.Scope, code string, tr services.TimeRange) ([]models.ClickEvent, error) {
	var events []models.ClickEvent
	err := s.scoped(ctx, scope, tr).
		Where("click_events.code = ?", code).
		Order("click_events.clicked_at ASC, click_events.id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormClickEventStore) TeamIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.ClickEvent{}).
		Distinct("team_id").
		Pluck("team_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type GormRewardTierStore struct {
	DB *gorm.DB
}

func NewRewardTierStore(db *gorm.DB) *GormRewardTierStore {
	return &GormRewardTierStore{DB: db}
}

func (s *GormRewardTierStore) TiersForTeam(ctx context.Context, teamID string) ([]models.RewardTier, error) {
	var tiers []models.RewardTier
	err := s.DB.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("clicks_threshold DESC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (s *GormRewardTierStore) ReplaceTiers(ctx context.Context, teamID string, tiers []models.RewardTier) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&models.RewardTier{}).Error; err != nil {
			return err
		}
		if len(tiers) == 0 {
			return nil
		}
		return tx.Create(&tiers).Error
	})
}

type GormReferralStore struct {
	DB *gorm.DB
}

func NewReferralStore(db *gorm.DB) *GormReferralStore {
	return &GormReferralStore{DB: db}
}

func (s *GormReferralStore) ReferrerOf(ctx context.Context, userID string) (*models.Referral, error) {
	var ref models.Referral
	err := s.DB.WithContext(ctx).Where("referred_id = ?", userID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *GormReferralStore) ReferredBy(ctx context.Context, referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	if err := s.DB.WithContext(ctx).Where("referrer_id = ?", referrerID).Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}
