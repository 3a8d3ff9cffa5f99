package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"link-reward-system/models"

	"github.com/gofiber/fiber/v2"
)

// RollupStore persists the periodically refreshed location aggregates.
type RollupStore interface {
	Replace(ctx context.Context, teamID string, counts []models.LocationCount, refreshedAt time.Time) error
	ForTeam(ctx context.Context, teamID string) ([]models.AnalyticsRollup, error)
}

type AnalyticsService struct {
	Events  ClickEventStore
	Rollups RollupStore
}

func NewAnalyticsService(events ClickEventStore, rollups RollupStore) *AnalyticsService {
	return &AnalyticsService{Events: events, Rollups: rollups}
}

// ParseTimeRange reads optional from/to query params, accepting
// RFC3339 timestamps or plain dates.
func ParseTimeRange(c *fiber.Ctx) (TimeRange, error) {
	var tr TimeRange
	parse := func(value string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", value)
	}
	if from := c.Query("from"); from != "" {
		t, err := parse(from)
		if err != nil {
			return tr, fmt.Errorf("invalid 'from' value %q", from)
		}
		tr.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := parse(to)
		if err != nil {
			return tr, fmt.Errorf("invalid 'to' value %q", to)
		}
		tr.To = t
	}
	return tr, nil
}

// GetSummary handles GET /analytics/summary — on-demand country/city
// grouping plus per-link totals for the caller's scope. Events without
// geo data land in the "unknown" bucket, never dropped.
func (s *AnalyticsService) GetSummary(c *fiber.Ctx) error {
	scope := ScopeFromCtx(c)
	tr, err := ParseTimeRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	locations, err := s.Events.LocationCounts(c.Context(), scope, tr)
	if err != nil {
		log.Printf("DB Error aggregating locations for team %s: %v", scope.TeamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to aggregate clicks"})
	}

	links, err := s.Events.LinkCounts(c.Context(), scope, tr)
	if err != nil {
		log.Printf("DB Error aggregating link counts for team %s: %v", scope.TeamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to aggregate clicks"})
	}

	return c.JSON(fiber.Map{"locations": locations, "links": links})
}

// GetEvents handles GET /analytics/events?code= — the detailed event
// list, in a stable (clicked_at, id) order. Pagination is the caller's
// concern; the order is what makes that workable.
func (s *AnalyticsService) GetEvents(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code query parameter is required"})
	}
	scope := ScopeFromCtx(c)
	tr, err := ParseTimeRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	events, err := s.Events.EventsForCode(c.Context(), scope, code, tr)
	if err != nil {
		log.Printf("DB Error listing events for code %s: %v", code, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list events"})
	}
	return c.JSON(fiber.Map{"events": events})
}

// GetRollups handles GET /analytics/rollups — the cached aggregate
// with its refresh timestamp, so callers can judge staleness.
func (s *AnalyticsService) GetRollups(c *fiber.Ctx) error {
	teamID := c.Locals("team_id").(string)
	rollups, err := s.Rollups.ForTeam(c.Context(), teamID)
	if err != nil {
		log.Printf("DB Error loading rollups for team %s: %v", teamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load rollups"})
	}
	return c.JSON(fiber.Map{"rollups": rollups})
}

// RefreshRollups recomputes every team's location aggregate from the
// click event log. Called by the scheduler; the refresh interval is
// the staleness bound for the rollup read path.
func (s *AnalyticsService) RefreshRollups(ctx context.Context) error {
	teams, err := s.Events.TeamIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list teams with clicks: %w", err)
	}

	now := time.Now().UTC()
	for _, teamID := range teams {
		counts, err := s.Events.LocationCounts(ctx, Scope{TeamID: teamID}, TimeRange{})
		if err != nil {
			return fmt.Errorf("failed to aggregate team %s: %w", teamID, err)
		}
		if err := s.Rollups.Replace(ctx, teamID, counts, now); err != nil {
			return fmt.Errorf("failed to store rollup for team %s: %w", teamID, err)
		}
	}
	return nil
}
