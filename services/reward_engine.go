package services

import (
	"fmt"
	"sort"

	"link-reward-system/models"
)

// ComputeEarnings converts a running click total into earnings using a
// team's reward tiers, greedily consuming the highest threshold first:
// each tier pays floor(remaining/threshold) times and passes the
// remainder down. This is NOT equivalent to a flat per-click rate for
// click counts that are not tier multiples, and the greedy form is the
// authoritative one.
//
// An empty tier set yields Configured=false, which is a valid "no
// rewards configured" state distinct from zero clicks. The tier set is
// assumed validated (see ValidateTierSet); ComputeEarnings itself only
// rejects a negative click count.
func ComputeEarnings(totalClicks int64, tiers []models.RewardTier) (models.EarningsResult, error) {
	if totalClicks < 0 {
		return models.EarningsResult{}, fmt.Errorf("%w: negative click count %d", ErrTierConfiguration, totalClicks)
	}

	if len(tiers) == 0 {
		return models.EarningsResult{Configured: false, Breakdown: []models.TierBreakdown{}}, nil
	}

	sorted := make([]models.RewardTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ClicksThreshold > sorted[j].ClicksThreshold
	})

	result := models.EarningsResult{
		Configured: true,
		// Result currency follows the tier set; validation guarantees
		// all tiers share one.
		Currency:  sorted[len(sorted)-1].Currency,
		Breakdown: []models.TierBreakdown{},
	}

	remaining := totalClicks
	for _, tier := range sorted {
		if remaining < tier.ClicksThreshold {
			continue
		}
		count := remaining / tier.ClicksThreshold
		earned := count * tier.Amount
		result.Total += earned
		result.Breakdown = append(result.Breakdown, models.TierBreakdown{
			ClicksThreshold: tier.ClicksThreshold,
			TimesSatisfied:  count,
			ClicksConsumed:  count * tier.ClicksThreshold,
			AmountEarned:    earned,
			Currency:        tier.Currency,
		})
		remaining = remaining % tier.ClicksThreshold
	}

	return result, nil
}

// ValidateTierSet rejects malformed tier sets at configuration time:
// non-positive thresholds, negative amounts, duplicate thresholds, or
// mixed currencies. An empty set is valid (rewards not configured).
func ValidateTierSet(tiers []models.RewardTier) error {
	seen := make(map[int64]bool, len(tiers))
	currency := ""
	for _, tier := range tiers {
		if tier.ClicksThreshold <= 0 {
			return fmt.Errorf("%w: threshold must be positive, got %d", ErrTierConfiguration, tier.ClicksThreshold)
		}
		if tier.Amount < 0 {
			return fmt.Errorf("%w: negative amount %d", ErrTierConfiguration, tier.Amount)
		}
		if len(tier.Currency) != 3 {
			return fmt.Errorf("%w: bad currency code %q", ErrTierConfiguration, tier.Currency)
		}
		if seen[tier.ClicksThreshold] {
			return fmt.Errorf("%w: duplicate threshold %d", ErrTierConfiguration, tier.ClicksThreshold)
		}
		seen[tier.ClicksThreshold] = true
		if currency == "" {
			currency = tier.Currency
		} else if tier.Currency != currency {
			return fmt.Errorf("%w: mixed currencies %s and %s", ErrTierConfiguration, currency, tier.Currency)
		}
	}
	return nil
}
