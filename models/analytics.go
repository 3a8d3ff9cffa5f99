package models

import "time"

// UnknownLocation is the bucket for click events whose geo enrichment
// failed. Events are grouped there rather than dropped.
const UnknownLocation = "unknown"

// AnalyticsRollup is a periodically refreshed per-team location
// aggregate. The staleness window equals the refresh interval of the
// rollup job; live queries go through the click event store instead.
type AnalyticsRollup struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID      string    `gorm:"uniqueIndex:idx_rollup_scope;not null" json:"team_id"`
	Country     string    `gorm:"uniqueIndex:idx_rollup_scope;not null" json:"country"`
	City        string    `gorm:"uniqueIndex:idx_rollup_scope;not null" json:"city"`
	Clicks      int64     `gorm:"not null" json:"clicks"`
	RefreshedAt time.Time `gorm:"not null" json:"refreshed_at"`
}

// LocationCount is one row of an on-demand country/city grouping.
type LocationCount struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Clicks  int64  `json:"clicks"`
}

// LinkCount is a per-link total inside an analytics summary.
type LinkCount struct {
	Code   string `json:"code"`
	Clicks int64  `json:"clicks"`
}
