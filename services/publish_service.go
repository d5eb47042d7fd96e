package services

import (
	"context"
	"strings"

	"github.com/postgen/postgen/clients"
	"github.com/postgen/postgen/common"
	"github.com/postgen/postgen/models"
)

// Publisher sends a status to a social platform.
type Publisher interface {
	Publish(ctx context.Context, message, accessToken string) (clients.PublishResult, error)
}

// PublishService posts messages to the caller's linked Mastodon account.
type PublishService struct {
	accounts  *AccountService
	publisher Publisher
}

// NewPublishService creates a PublishService.
func NewPublishService(accounts *AccountService, publisher Publisher) *PublishService {
	return &PublishService{accounts: accounts, publisher: publisher}
}

// PublishForUser publishes message with the caller's stored Mastodon token.
func (s *PublishService) PublishForUser(ctx context.Context, id Identity, message string) (clients.PublishResult, error) {
	if !id.Authenticated() {
		return clients.PublishResult{}, ErrNotAuthenticated
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return clients.PublishResult{}, common.Validation("Message is required")
	}
	token, err := s.accounts.AccessToken(ctx, id, models.PlatformMastodon)
	if err != nil {
		return clients.PublishResult{}, err
	}
	return s.publisher.Publish(ctx, message, token)
}
