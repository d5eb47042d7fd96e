package models

import "time"

// User is a local identity created on first OAuth login.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:255;not null" json:"username"`
	Provider   string    `gorm:"size:32;uniqueIndex:idx_user_provider" json:"provider"`
	ProviderID string    `gorm:"size:255;uniqueIndex:idx_user_provider" json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
