package models

import (
	"time"

	"gorm.io/gorm"
)

// ShortLink maps a short code to its destination URL.
// ClickCount is a derived cache of count(ClickEvent) for the link; it is
// mutated only through the click store's atomic increment.
type ShortLink struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	OriginalURL string `gorm:"type:text;not null" json:"original_url"`
	Title       string `json:"title,omitempty"`

	TeamID string  `gorm:"index;not null" json:"team_id"` // ExternalTeamID
	UserID *string `gorm:"index" json:"user_id,omitempty"`

	ClickCount int64 `gorm:"default:0" json:"click_count"`
	Active     bool  `gorm:"default:true;index" json:"active"`

	// Template links are admin-issued and propagated to team members.
	// TemplateID points back at the template a propagated copy came from.
	IsTemplate bool    `gorm:"default:false" json:"is_template"`
	TemplateID *string `gorm:"index" json:"template_id,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
