package models

// Referral mirrors who-referred-whom from the identity service. The core
// never writes this graph; it only reads it to attribute clicks on a
// referred user's links back to their referrer.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`       // ExternalUserID
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"` // ExternalUserID
	TeamID     string `gorm:"index;not null" json:"team_id"`

	Timestamps
}
