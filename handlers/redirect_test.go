package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"link-reward-system/database"
	"link-reward-system/models"
	"link-reward-system/services"
	"link-reward-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type redirectFixture struct {
	app    *fiber.App
	db     *gorm.DB
	cancel context.CancelFunc
}

func newRedirectFixture(t *testing.T) *redirectFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	linkStore := database.NewShortLinkStore(db)
	clickStore := database.NewClickEventStore(db)
	linkService := services.NewLinkService(linkStore, nil)

	worker := workers.NewClickWorker(clickStore, services.NewGeoResolver(), database.NewReferralStore(db), 64, 1)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	app := fiber.New()
	SetupRedirectRoutes(app, linkService, worker)

	t.Cleanup(cancel)
	return &redirectFixture{app: app, db: db, cancel: cancel}
}

func (f *redirectFixture) seed(t *testing.T, code string, active bool) *models.ShortLink {
	t.Helper()
	link := &models.ShortLink{
		ID:          uuid.NewString(),
		Code:        code,
		OriginalURL: "https://example.com/dest",
		TeamID:      "team-1",
		Active:      active,
	}
	require.NoError(t, f.db.Create(link).Error)
	return link
}

func TestRedirectReturnsFound(t *testing.T) {
	f := newRedirectFixture(t)
	link := f.seed(t, "abc123", true)

	req := httptest.NewRequest("GET", "/r/abc123", nil)
	req.Header.Set("User-Agent", "test-agent")
	resp, err := f.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/dest", resp.Header.Get("Location"))

	// The click lands in the background; the redirect never waits.
	assert.Eventually(t, func() bool {
		var got models.ShortLink
		if err := f.db.First(&got, "id = ?", link.ID).Error; err != nil {
			return false
		}
		return got.ClickCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedirectNotFoundDoesNotLeakInactivity(t *testing.T) {
	f := newRedirectFixture(t)
	f.seed(t, "inactive1", false)

	inactive, err := f.app.Test(httptest.NewRequest("GET", "/r/inactive1", nil))
	require.NoError(t, err)
	missing, err := f.app.Test(httptest.NewRequest("GET", "/r/neverwas1", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, inactive.StatusCode)
	assert.Equal(t, fiber.StatusNotFound, missing.StatusCode)

	inactiveBody, err := io.ReadAll(inactive.Body)
	require.NoError(t, err)
	missingBody, err := io.ReadAll(missing.Body)
	require.NoError(t, err)
	assert.Equal(t, string(inactiveBody), string(missingBody), "responses must be indistinguishable")
}

func TestRedirectRecordsNoClickOnNotFound(t *testing.T) {
	f := newRedirectFixture(t)

	_, err := f.app.Test(httptest.NewRequest("GET", "/r/nothere", nil))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	var events int64
	require.NoError(t, f.db.Model(&models.ClickEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

// A queued click must keep the request's own headers even after fiber
// has recycled the request buffers for later traffic.
func TestQueuedClickKeepsRequestFields(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	linkStore := database.NewShortLinkStore(db)
	clickStore := database.NewClickEventStore(db)
	linkService := services.NewLinkService(linkStore, nil)

	// Not started yet: jobs stay queued past their handlers, so any
	// value still aliasing a request buffer would be overwritten by
	// the second request before the worker persists the first.
	worker := workers.NewClickWorker(clickStore, services.NewGeoResolver(), database.NewReferralStore(db), 64, 1)

	app := fiber.New()
	SetupRedirectRoutes(app, linkService, worker)

	link := &models.ShortLink{
		ID:          uuid.NewString(),
		Code:        "keepme",
		OriginalURL: "https://example.com/dest",
		TeamID:      "team-1",
		Active:      true,
	}
	require.NoError(t, db.Create(link).Error)

	first := httptest.NewRequest("GET", "/r/keepme", nil)
	first.Header.Set("User-Agent", "agent-alpha/1.0")
	first.Header.Set("X-Forwarded-For", "203.0.113.50")
	first.Header.Set("Referer", "https://alpha.example/start")
	resp, err := app.Test(first)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	second := httptest.NewRequest("GET", "/r/keepme", nil)
	second.Header.Set("User-Agent", "agent-beta/2.0")
	second.Header.Set("X-Forwarded-For", "198.51.100.99")
	second.Header.Set("Referer", "https://beta.example/other")
	resp, err = app.Test(second)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	worker.Start(ctx)

	require.Eventually(t, func() bool {
		var events int64
		return db.Model(&models.ClickEvent{}).Count(&events).Error == nil && events == 2
	}, 2*time.Second, 10*time.Millisecond)

	var events []models.ClickEvent
	require.NoError(t, db.Find(&events).Error)
	byAgent := map[string]models.ClickEvent{}
	for _, e := range events {
		byAgent[e.UserAgent] = e
	}

	alpha, ok := byAgent["agent-alpha/1.0"]
	require.True(t, ok, "first request's user agent must survive, got %v", byAgent)
	assert.Equal(t, "203.0.113.50", alpha.IPAddress)
	assert.Equal(t, "https://alpha.example/start", alpha.Referrer)

	beta, ok := byAgent["agent-beta/2.0"]
	require.True(t, ok)
	assert.Equal(t, "198.51.100.99", beta.IPAddress)
	assert.Equal(t, "https://beta.example/other", beta.Referrer)
}
