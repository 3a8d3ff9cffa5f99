package database

import (
	"context"
	"testing"
	"time"

	"link-reward-system/models"
	"link-reward-system/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A private in-memory DB exists per connection; pin the pool to one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	return db
}

func seedTestLink(t *testing.T, db *gorm.DB, code, teamID string, userID *string) *models.ShortLink {
	t.Helper()
	link := &models.ShortLink{
		ID:          uuid.NewString(),
		Code:        code,
		OriginalURL: "https://example.com/" + code,
		TeamID:      teamID,
		UserID:      userID,
		Active:      true,
	}
	require.NoError(t, db.Create(link).Error)
	return link
}

func testEvent(link *models.ShortLink, at time.Time, country, city *string) *models.ClickEvent {
	return &models.ClickEvent{
		ID:          uuid.NewString(),
		ShortLinkID: link.ID,
		Code:        link.Code,
		TeamID:      link.TeamID,
		ClickedAt:   at,
		IPAddress:   "203.0.113.9",
		UserAgent:   "test-agent",
		Country:     country,
		City:        city,
	}
}

func strptr(s string) *string { return &s }

func TestAppendAndCountIdempotent(t *testing.T) {
	db := setupTestDB(t)
	link := seedTestLink(t, db, "abc123", "team-1", nil)
	store := NewClickEventStore(db)

	event := testEvent(link, time.Now().UTC(), nil, nil)
	require.NoError(t, store.AppendAndCount(context.Background(), event))
	// At-least-once delivery: the same event arrives again.
	redelivery := *event
	require.NoError(t, store.AppendAndCount(context.Background(), &redelivery))

	var got models.ShortLink
	require.NoError(t, db.First(&got, "id = ?", link.ID).Error)
	assert.Equal(t, int64(1), got.ClickCount)

	var events int64
	require.NoError(t, db.Model(&models.ClickEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCounterMatchesEventLog(t *testing.T) {
	db := setupTestDB(t)
	link := seedTestLink(t, db, "abc123", "team-1", nil)
	store := NewClickEventStore(db)

	const clicks = 50
	for i := 0; i < clicks; i++ {
		require.NoError(t, store.AppendAndCount(context.Background(), testEvent(link, time.Now().UTC(), nil, nil)))
	}

	// Quiescent-point invariant: the counter is exactly the event sum.
	var got models.ShortLink
	require.NoError(t, db.First(&got, "id = ?", link.ID).Error)
	var events int64
	require.NoError(t, db.Model(&models.ClickEvent{}).Where("short_link_id = ?", link.ID).Count(&events).Error)
	assert.Equal(t, events, got.ClickCount)
	assert.Equal(t, int64(clicks), got.ClickCount)
}

func TestLocationCountsUnknownBucket(t *testing.T) {
	db := setupTestDB(t)
	link := seedTestLink(t, db, "abc123", "team-1", nil)
	store := NewClickEventStore(db)
	now := time.Now().UTC()

	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(link, now, strptr("AU"), strptr("Sydney"))))
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(link, now, strptr("AU"), strptr("Sydney"))))
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(link, now, nil, nil)))

	counts, err := store.LocationCounts(context.Background(), services.Scope{TeamID: "team-1"}, services.TimeRange{})
	require.NoError(t, err)
	require.Len(t, counts, 2)

	byCountry := map[string]models.LocationCount{}
	for _, c := range counts {
		byCountry[c.Country] = c
	}
	assert.Equal(t, int64(2), byCountry["AU"].Clicks)
	assert.Equal(t, "Sydney", byCountry["AU"].City)
	// Enrichment-failed clicks are grouped, never dropped.
	assert.Equal(t, int64(1), byCountry[models.UnknownLocation].Clicks)
	assert.Equal(t, models.UnknownLocation, byCountry[models.UnknownLocation].City)
}

func TestLinkCountsWithTimeRange(t *testing.T) {
	db := setupTestDB(t)
	linkA := seedTestLink(t, db, "aaa", "team-1", nil)
	linkB := seedTestLink(t, db, "bbb", "team-1", nil)
	store := NewClickEventStore(db)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(linkA, old, nil, nil)))
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(linkA, recent, nil, nil)))
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(linkB, recent, nil, nil)))

	counts, err := store.LinkCounts(context.Background(), services.Scope{TeamID: "team-1"},
		services.TimeRange{From: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, counts, 2)
	for _, c := range counts {
		assert.Equal(t, int64(1), c.Clicks, "old click excluded for %s", c.Code)
	}

	all, err := store.LinkCounts(context.Background(), services.Scope{TeamID: "team-1"}, services.TimeRange{})
	require.NoError(t, err)
	byCode := map[string]int64{}
	for _, c := range all {
		byCode[c.Code] = c.Clicks
	}
	assert.Equal(t, int64(2), byCode["aaa"])
	assert.Equal(t, int64(1), byCode["bbb"])
}

func TestEventsForCodeStableOrder(t *testing.T) {
	db := setupTestDB(t)
	link := seedTestLink(t, db, "abc123", "team-1", nil)
	store := NewClickEventStore(db)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendAndCount(context.Background(),
			testEvent(link, base.Add(time.Duration(i)*time.Minute), nil, nil)))
	}

	events, err := store.EventsForCode(context.Background(), services.Scope{TeamID: "team-1"}, "abc123", services.TimeRange{})
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].ClickedAt.Before(events[i-1].ClickedAt), "order must be stable ascending")
	}
}

func TestScopeNarrowsToUser(t *testing.T) {
	db := setupTestDB(t)
	mine := seedTestLink(t, db, "mine", "team-1", strptr("user-1"))
	other := seedTestLink(t, db, "other", "team-1", strptr("user-2"))
	store := NewClickEventStore(db)
	now := time.Now().UTC()

	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(mine, now, nil, nil)))
	require.NoError(t, store.AppendAndCount(context.Background(), testEvent(other, now, nil, nil)))

	counts, err := store.LinkCounts(context.Background(),
		services.Scope{TeamID: "team-1", UserID: strptr("user-1")}, services.TimeRange{})
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "mine", counts[0].Code)
}

func TestShortLinkStoreNotFoundIsUniform(t *testing.T) {
	db := setupTestDB(t)
	store := NewShortLinkStore(db)

	_, err := store.ByCode(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrLinkNotFound)

	link := seedTestLink(t, db, "abc", "team-1", nil)
	require.NoError(t, store.Deactivate(context.Background(), link.ID))

	got, err := store.ByCode(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, got.Active, "store returns the row; the resolver maps inactive to not found")
}

func TestClickTotalsForUser(t *testing.T) {
	db := setupTestDB(t)
	store := NewShortLinkStore(db)

	a := seedTestLink(t, db, "a1", "team-1", strptr("user-1"))
	b := seedTestLink(t, db, "b1", "team-1", strptr("user-1"))
	seedTestLink(t, db, "c1", "team-1", strptr("user-2"))
	require.NoError(t, db.Model(a).UpdateColumn("click_count", 120).Error)
	require.NoError(t, db.Model(b).UpdateColumn("click_count", 30).Error)

	total, err := store.ClickTotalsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)

	total, err = store.ClickTotalsForUser(context.Background(), "user-none")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestReplaceTiers(t *testing.T) {
	db := setupTestDB(t)
	store := NewRewardTierStore(db)

	first := []models.RewardTier{
		{ID: uuid.NewString(), TeamID: "team-1", ClicksThreshold: 100, Amount: 50, Currency: "PKR"},
		{ID: uuid.NewString(), TeamID: "team-1", ClicksThreshold: 1000, Amount: 600, Currency: "PKR"},
	}
	require.NoError(t, store.ReplaceTiers(context.Background(), "team-1", first))

	tiers, err := store.TiersForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, int64(1000), tiers[0].ClicksThreshold, "descending order")

	second := []models.RewardTier{
		{ID: uuid.NewString(), TeamID: "team-1", ClicksThreshold: 500, Amount: 250, Currency: "PKR"},
	}
	require.NoError(t, store.ReplaceTiers(context.Background(), "team-1", second))

	tiers, err = store.TiersForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, int64(500), tiers[0].ClicksThreshold)
}

func TestRollupReplaceUpserts(t *testing.T) {
	db := setupTestDB(t)
	store := NewRollupStore(db)
	now := time.Now().UTC()

	counts := []models.LocationCount{
		{Country: "AU", City: "Sydney", Clicks: 3},
		{Country: models.UnknownLocation, City: models.UnknownLocation, Clicks: 1},
	}
	require.NoError(t, store.Replace(context.Background(), "team-1", counts, now))

	later := now.Add(5 * time.Minute)
	counts[0].Clicks = 7
	require.NoError(t, store.Replace(context.Background(), "team-1", counts, later))

	rollups, err := store.ForTeam(context.Background(), "team-1")
	require.NoError(t, err)
	require.Len(t, rollups, 2, "refresh updates in place, no duplicates")
	assert.Equal(t, int64(7), rollups[0].Clicks)
	assert.Equal(t, "AU", rollups[0].Country)
}

func TestReferralStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewReferralStore(db)

	require.NoError(t, db.Create(&models.Referral{
		ID: uuid.NewString(), ReferrerID: "user-1", ReferredID: "user-2", TeamID: "team-1",
	}).Error)
	require.NoError(t, db.Create(&models.Referral{
		ID: uuid.NewString(), ReferrerID: "user-1", ReferredID: "user-3", TeamID: "team-1",
	}).Error)

	ref, err := store.ReferrerOf(context.Background(), "user-2")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "user-1", ref.ReferrerID)

	ref, err = store.ReferrerOf(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, ref, "not referred → nil, not an error")

	refs, err := store.ReferredBy(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}
