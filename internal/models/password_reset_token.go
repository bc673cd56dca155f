package models

import "time"

// PasswordResetToken holds at most one live reset token per email. A new
// request for the same email upserts this row, which silently invalidates
// the previous token.
type PasswordResetToken struct {
	Email     string    `gorm:"primaryKey" json:"email"`
	Token     string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
