package models

import "time"

// PlatformMastodon is the only platform accounts can currently be linked to.
const PlatformMastodon = "mastodon"

// SupportedPlatforms is the closed set of linkable platforms.
var SupportedPlatforms = []string{PlatformMastodon}

// IsSupportedPlatform reports whether platform is in SupportedPlatforms.
func IsSupportedPlatform(platform string) bool {
	for _, p := range SupportedPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// LinkedAccount stores an OAuth credential for one user on one platform.
// (user_id, platform) is unique; re-linking updates the row in place.
type LinkedAccount struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_linked_user_platform;not null" json:"user_id"`
	Platform    string    `gorm:"uniqueIndex:idx_linked_user_platform;size:20;not null" json:"platform"`
	AccessToken string    `gorm:"type:text;not null" json:"-"` // sealed, see utils.TokenSealer
	Username    string    `gorm:"size:255" json:"username"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
