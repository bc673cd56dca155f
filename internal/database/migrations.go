package database

import (
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.PasswordResetToken{},
		&models.ResetThrottle{},
		&models.Post{},
	)
}
