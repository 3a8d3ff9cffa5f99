package models

// RewardTier is one (threshold, payout) rule of a team's reward
// configuration. Amount is in minor currency units (e.g. cents);
// monetary math never touches floating point.
type RewardTier struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID          string `gorm:"index;not null" json:"team_id"`
	ClicksThreshold int64  `gorm:"not null" json:"clicks_threshold"`
	Amount          int64  `gorm:"not null" json:"amount"`
	Currency        string `gorm:"size:3;not null" json:"currency"`

	Timestamps
}

// TierBreakdown reports how one tier contributed to an earnings total.
type TierBreakdown struct {
	ClicksThreshold int64  `json:"clicks_threshold"`
	TimesSatisfied  int64  `json:"times_satisfied"`
	ClicksConsumed  int64  `json:"clicks_consumed"`
	AmountEarned    int64  `json:"amount_earned"`
	Currency        string `json:"currency"`
}

// EarningsResult is computed on demand and never stored.
// Configured is false when the team has no reward tiers at all, which is
// distinct from a configured team with zero clicks.
type EarningsResult struct {
	Configured bool            `json:"configured"`
	Total      int64           `json:"total"`
	Currency   string          `json:"currency,omitempty"`
	Breakdown  []TierBreakdown `json:"breakdown"`
}
