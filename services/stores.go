package services

import (
	"context"
	"errors"
	"time"

	"link-reward-system/models"
)

// Storage capability interfaces. The services only ever see these; the
// gorm implementations live in the database package so any engine with
// an atomic add and a deduplicated insert can back the core.

var (
	// ErrLinkNotFound covers both unknown and deactivated codes so the
	// two cases are indistinguishable to callers.
	ErrLinkNotFound = errors.New("short link not found")

	// ErrTierConfiguration marks a malformed reward tier set, rejected
	// when the set is written, never at computation time.
	ErrTierConfiguration = errors.New("invalid reward tier configuration")
)

// Scope identifies whose data an analytics or earnings read covers.
// UserID narrows the scope to one member's links when set.
type Scope struct {
	TeamID string
	UserID *string
}

// TimeRange bounds a query; zero values mean unbounded on that side.
type TimeRange struct {
	From time.Time
	To   time.Time
}

type ShortLinkStore interface {
	Create(ctx context.Context, link *models.ShortLink) error
	ByCode(ctx context.Context, code string) (*models.ShortLink, error)
	ByID(ctx context.Context, id string) (*models.ShortLink, error)
	ByScope(ctx context.Context, scope Scope) ([]models.ShortLink, error)
	Deactivate(ctx context.Context, id string) error
	CodeExists(ctx context.Context, code string) (bool, error)
	TemplatesForTeam(ctx context.Context, teamID string) ([]models.ShortLink, error)
	ClickTotalsForUser(ctx context.Context, userID string) (int64, error)
}

type ClickEventStore interface {
	// AppendAndCount inserts the event and increments the owning link's
	// counter by one, atomically. Re-submitting an event with the same
	// ID is a no-op on both the log and the counter.
	AppendAndCount(ctx context.Context, event *models.ClickEvent) error

	LocationCounts(ctx context.Context, scope Scope, tr TimeRange) ([]models.LocationCount, error)
	LinkCounts(ctx context.Context, scope Scope, tr TimeRange) ([]models.LinkCount, error)
	EventsForCode(ctx context.Context, scope Scope, code string, tr TimeRange) ([]models.ClickEvent, error)
	TeamIDs(ctx context.Context) ([]string, error)
}

type RewardTierProvider interface {
	TiersForTeam(ctx context.Context, teamID string) ([]models.RewardTier, error)
	ReplaceTiers(ctx context.Context, teamID string, tiers []models.RewardTier) error
}

type ReferralProvider interface {
	// ReferrerOf returns the referral row for a referred user, or nil
	// when the user was not referred.
	ReferrerOf(ctx context.Context, userID string) (*models.Referral, error)
	ReferredBy(ctx context.Context, referrerID string) ([]models.Referral, error)
}
