package models

import "time"

// RateLimitProfile is a named fixed-window rule stored in Postgres.
// Rows override the built-in default profiles of the same name at
// startup, so operators can tune limits without a redeploy.
type RateLimitProfile struct {
	Name            string    `gorm:"primaryKey" json:"name"`
	Limit           int       `gorm:"not null" json:"limit"`
	WindowMs        int64     `gorm:"not null" json:"window_ms"`
	BlockDurationMs int64     `gorm:"default:0" json:"block_duration_ms"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (RateLimitProfile) TableName() string {
	return "rate_limit_profiles"
}
