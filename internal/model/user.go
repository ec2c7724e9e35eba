package model

import "time"

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Verified     bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	AuthTokens []AuthToken `gorm:"foreignKey:OwnerID"`
}
