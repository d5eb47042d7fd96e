package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postgen/postgen/common"
	"github.com/postgen/postgen/models"
)

// Sealer encrypts access tokens before they are stored.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// LinkedAccountView is the public shape of a linked account.
type LinkedAccountView struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
}

// AccountService links third-party platform credentials to local users.
type AccountService struct {
	db     *gorm.DB
	sealer Sealer
	now    func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(db *gorm.DB, sealer Sealer) *AccountService {
	return &AccountService{db: db, sealer: sealer, now: time.Now}
}

func requireIdentity(id Identity) error {
	if !id.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// Link stores the credential for (caller, platform), replacing any previous one.
func (s *AccountService) Link(ctx context.Context, id Identity, platform, accessToken, username string) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	accessToken = strings.TrimSpace(accessToken)
	username = strings.TrimSpace(username)
	if accessToken == "" || username == "" {
		return common.Validation("Missing Mastodon token or username")
	}
	if !models.IsSupportedPlatform(platform) {
		return common.Validation("Unsupported platform")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a session can outlive its user row; the upsert would then break the foreign key
		var user models.User
		if err := tx.Select("id").First(&user, id.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		return s.upsert(tx, id.UserID, platform, accessToken, username)
	})
}

func (s *AccountService) upsert(tx *gorm.DB, userID uint, platform, accessToken, username string) error {
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return err
	}
	now := s.now()
	account := models.LinkedAccount{
		UserID:      userID,
		Platform:    platform,
		AccessToken: sealed,
		Username:    username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.Omit("User").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "username", "updated_at"}),
	}).Create(&account).Error
}

// Unlink removes the caller's account on platform. Removing nothing is not an error.
func (s *AccountService) Unlink(ctx context.Context, id Identity, platform string) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return common.Validation("Platform is required")
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", id.UserID, platform).
		Delete(&models.LinkedAccount{}).Error
}

// List returns the caller's linked accounts ordered by platform.
func (s *AccountService) List(ctx context.Context, id Identity) ([]LinkedAccountView, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	var rows []models.LinkedAccount
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("platform ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	views := make([]LinkedAccountView, 0, len(rows))
	for _, r := range rows {
		views = append(views, LinkedAccountView{Platform: r.Platform, Username: r.Username})
	}
	return views, nil
}

// AccessToken returns the caller's plaintext token for platform.
func (s *AccountService) AccessToken(ctx context.Context, id Identity, platform string) (string, error) {
	if err := requireIdentity(id); err != nil {
		return "", err
	}
	var account models.LinkedAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", id.UserID, platform).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", common.NotFound(notLinkedMessage(platform))
	}
	if err != nil {
		return "", err
	}
	return s.sealer.Open(account.AccessToken)
}

func notLinkedMessage(platform string) string {
	if platform == models.PlatformMastodon {
		return "No linked Mastodon account"
	}
	return "No linked " + platform + " account"
}

// LoginWithProvider finds or creates the local user for a provider identity and
// links the provider token to it in one transaction.
func (s *AccountService) LoginWithProvider(ctx context.Context, provider, providerID, username, accessToken string) (*models.User, error) {
	if providerID == "" || username == "" {
		return nil, common.Validation("Missing provider identity")
	}
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(models.User{Provider: provider, ProviderID: providerID}).
			Attrs(models.User{Username: username}).
			FirstOrCreate(&user).Error
		if err != nil {
			return err
		}
		if user.Username != username {
			if err := tx.Model(&user).Update("username", username).Error; err != nil {
				return err
			}
		}
		if accessToken == "" || !models.IsSupportedPlatform(provider) {
			return nil
		}
		return s.upsert(tx, user.ID, provider, accessToken, username)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
