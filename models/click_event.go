package models

import "time"

// ClickEvent is the append-only record of a single resolved click.
// The ID doubles as the idempotency token for the click: a background
// retry that re-submits the same event inserts nothing and therefore
// never double-increments the link counter.
type ClickEvent struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ShortLinkID string `gorm:"index;not null" json:"short_link_id"`
	Code        string `gorm:"index;not null" json:"code"`
	TeamID      string `gorm:"index;not null" json:"team_id"`

	ClickedAt time.Time `gorm:"index;not null" json:"clicked_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	Referrer  string    `gorm:"type:text" json:"referrer"`

	// Geo enrichment is best-effort; both stay nil when lookup fails.
	Country *string `gorm:"index" json:"country,omitempty"`
	City    *string `json:"city,omitempty"`

	// Set when the link owner was referred by another user; feeds the
	// referral-earnings path.
	ReferredByUserID *string `gorm:"index" json:"referred_by_user_id,omitempty"`
}
