package models

import (
	"time"
)

// Option is a named value used by the database state backend.
// A nil ExpiresAt never expires.
type Option struct {
	Name      string     `gorm:"type:varchar(191);primaryKey" json:"name"`
	Value     string     `gorm:"type:text" json:"value"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Option) TableName() string {
	return "options"
}

// Expired reports whether the option has expired at now
func (o *Option) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
