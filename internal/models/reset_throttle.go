package models

import "time"

// ResetThrottle gates password reset requests per client IP. Entries expire
// naturally after their window or are cleared early by a completed reset.
type ResetThrottle struct {
	IP        string    `gorm:"primaryKey" json:"ip"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
