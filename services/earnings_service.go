package services

import (
	"context"
	"errors"
	"log"

	"link-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type EarningsService struct {
	Tiers     RewardTierProvider
	Links     ShortLinkStore
	Events    ClickEventStore
	Referrals ReferralProvider
}

func NewEarningsService(tiers RewardTierProvider, links ShortLinkStore, events ClickEventStore, referrals ReferralProvider) *EarningsService {
	return &EarningsService{Tiers: tiers, Links: links, Events: events, Referrals: referrals}
}

// clickTotal sums clicks for a scope. Without a time range the link
// counters are authoritative; a bounded range has to count events.
func (s *EarningsService) clickTotal(ctx context.Context, scope Scope, tr TimeRange) (int64, error) {
	if tr.From.IsZero() && tr.To.IsZero() {
		links, err := s.Links.ByScope(ctx, scope)
		if err != nil {
			return 0, err
		}
		var total int64
		for _, l := range links {
			total += l.ClickCount
		}
		return total, nil
	}

	counts, err := s.Events.LinkCounts(ctx, scope, tr)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range counts {
		total += c.Clicks
	}
	return total, nil
}

// referralClickTotal is clickTotal narrowed to one referred user's
// links.
func (s *EarningsService) referralClickTotal(ctx context.Context, teamID, userID string, tr TimeRange) (int64, error) {
	if tr.From.IsZero() && tr.To.IsZero() {
		return s.Links.ClickTotalsForUser(ctx, userID)
	}
	counts, err := s.Events.LinkCounts(ctx, Scope{TeamID: teamID, UserID: &userID}, tr)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range counts {
		total += c.Clicks
	}
	return total, nil
}

// GetEarnings handles GET /earnings
func (s *EarningsService) GetEarnings(c *fiber.Ctx) error {
	scope := ScopeFromCtx(c)
	tr, err := ParseTimeRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tiers, err := s.Tiers.TiersForTeam(c.Context(), scope.TeamID)
	if err != nil {
		log.Printf("DB Error loading tiers for team %s: %v", scope.TeamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load reward tiers"})
	}

	total, err := s.clickTotal(c.Context(), scope, tr)
	if err != nil {
		log.Printf("DB Error counting clicks for team %s: %v", scope.TeamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count clicks"})
	}

	result, err := ComputeEarnings(total, tiers)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute earnings"})
	}
	return c.JSON(fiber.Map{"total_clicks": total, "earnings": result})
}

// ReferralEarningsEntry is one referred user's contribution seen from
// the referrer's side.
type ReferralEarningsEntry struct {
	ReferredUserID string                `json:"referred_user_id"`
	TotalClicks    int64                 `json:"total_clicks"`
	Earnings       models.EarningsResult `json:"earnings"`
}

// GetReferralEarnings handles GET /earnings/referrals — both sides of
// the referral relation, through the same tier engine as team rewards.
// Every recorded click on a referred user's links counts; repeat
// clicks from one visitor are not collapsed.
func (s *EarningsService) GetReferralEarnings(c *fiber.Ctx) error {
	teamID := c.Locals("team_id").(string)
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user context required"})
	}
	tr, err := ParseTimeRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tiers, err := s.Tiers.TiersForTeam(c.Context(), teamID)
	if err != nil {
		log.Printf("DB Error loading tiers for team %s: %v", teamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load reward tiers"})
	}

	// Earnings received for the users this caller referred.
	referred, err := s.Referrals.ReferredBy(c.Context(), userID)
	if err != nil {
		log.Printf("DB Error loading referrals of %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load referrals"})
	}

	asReferrer := make([]ReferralEarningsEntry, 0, len(referred))
	for _, ref := range referred {
		clicks, err := s.referralClickTotal(c.Context(), teamID, ref.ReferredID, tr)
		if err != nil {
			log.Printf("DB Error counting clicks for referred user %s: %v", ref.ReferredID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count clicks"})
		}
		result, err := ComputeEarnings(clicks, tiers)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute earnings"})
		}
		asReferrer = append(asReferrer, ReferralEarningsEntry{
			ReferredUserID: ref.ReferredID,
			TotalClicks:    clicks,
			Earnings:       result,
		})
	}

	// The caller's own bonus when they were themselves referred.
	response := fiber.Map{"as_referrer": asReferrer}
	if ref, err := s.Referrals.ReferrerOf(c.Context(), userID); err != nil {
		log.Printf("DB Error loading referrer of %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load referrals"})
	} else if ref != nil {
		clicks, err := s.referralClickTotal(c.Context(), teamID, userID, tr)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count clicks"})
		}
		result, err := ComputeEarnings(clicks, tiers)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute earnings"})
		}
		response["as_referred"] = ReferralEarningsEntry{
			ReferredUserID: userID,
			TotalClicks:    clicks,
			Earnings:       result,
		}
	}

	return c.JSON(response)
}

// UpdateRewardTiers handles PUT /teams/:id/reward-tiers — this is the
// one place a tier set is validated; computation assumes a valid set.
func (s *EarningsService) UpdateRewardTiers(c *fiber.Ctx) error {
	teamID := c.Params("id")
	if c.Locals("team_id").(string) != teamID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Cannot edit another team's tiers"})
	}

	var req struct {
		Tiers []struct {
			ClicksThreshold int64  `json:"clicks_threshold"`
			Amount          int64  `json:"amount"`
			Currency        string `json:"currency"`
		} `json:"tiers"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	tiers := make([]models.RewardTier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, models.RewardTier{
			ID:              uuid.NewString(),
			TeamID:          teamID,
			ClicksThreshold: t.ClicksThreshold,
			Amount:          t.Amount,
			Currency:        t.Currency,
		})
	}

	if err := ValidateTierSet(tiers); err != nil {
		if errors.Is(err, ErrTierConfiguration) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to validate tiers"})
	}

	if err := s.Tiers.ReplaceTiers(c.Context(), teamID, tiers); err != nil {
		log.Printf("DB Error replacing tiers for team %s: %v", teamID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save reward tiers"})
	}
	return c.JSON(fiber.Map{"tiers": tiers})
}
