package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/postgen/postgen/common"
	"github.com/postgen/postgen/models"
)

const postsCachePrefix = "cache:posts:list:"

// TextGenerator produces post text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// StatusFilter selects which posts List returns.
type StatusFilter string

const (
	StatusAny     StatusFilter = ""
	StatusActive  StatusFilter = models.PostStatusActive
	StatusDeleted StatusFilter = models.PostStatusDeleted
)

// ParseStatusFilter maps a query value onto a StatusFilter.
func ParseStatusFilter(v string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(v))); f {
	case StatusAny, StatusActive, StatusDeleted:
		return f, nil
	case "all":
		return StatusAny, nil
	default:
		return StatusAny, common.Validation("Invalid status filter")
	}
}

// HistoryEntry is one snapshot of a post's content before an edit.
type HistoryEntry struct {
	EditedAt        time.Time
	PreviousContent string
}

// PostService creates, edits and soft deletes posts.
type PostService struct {
	db       *gorm.DB
	ai       TextGenerator
	cache    ListCache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewPostService creates a PostService. cacheTTL of zero disables list caching.
func NewPostService(db *gorm.DB, ai TextGenerator, cacheTTL time.Duration) *PostService {
	return &PostService{db: db, ai: ai, cache: redisListCache{}, cacheTTL: cacheTTL, now: time.Now}
}

// Generate asks the AI provider for a post and stores it.
func (s *PostService) Generate(ctx context.Context, prompt, title string) (*models.Post, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, common.Validation("Prompt is required")
	}
	title = strings.TrimSpace(title)
	if err := checkTitleLength(title); err != nil {
		return nil, err
	}

	raw, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	content := NormalizeContent(raw)
	if content == "" {
		return nil, common.Upstream("Generated post is empty", nil)
	}

	if title == "" {
		title = truncateRunes(DeriveTitle(content), models.TitleMaxLength)
	}

	post := models.Post{
		Prompt:  prompt,
		Title:   title,
		Content: content,
		Status:  models.PostStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}
	s.cache.Bump(ctx)
	return &post, nil
}

// NormalizeContent trims every line and drops the blank ones.
func NormalizeContent(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// DeriveTitle is the text before the first "." of content, or all of it.
func DeriveTitle(content string) string {
	if i := strings.Index(content, "."); i >= 0 {
		return content[:i]
	}
	return content
}

func checkTitleLength(title string) error {
	if utf8.RuneCountInString(title) > models.TitleMaxLength {
		return common.Validation(fmt.Sprintf("Title must be at most %d characters", models.TitleMaxLength))
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// List returns posts newest first.
func (s *PostService) List(ctx context.Context, filter StatusFilter) ([]models.Post, error) {
	// the generation is read before the query; see ListCache
	gen, cacheable := s.cache.Generation(ctx)
	key := fmt.Sprintf("%sgen=%d:status=%s", postsCachePrefix, gen, filter)
	if cacheable {
		if b, ok := s.cache.Get(ctx, key); ok {
			var cached []models.Post
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
		}
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if filter != StatusAny {
		q = q.Where("status = ?", string(filter))
	}
	posts := []models.Post{}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(ctx, key, posts, s.cacheTTL)
	}
	return posts, nil
}

// Edit replaces the title and content of an active post, snapshotting the old content first.
func (s *PostService) Edit(ctx context.Context, id uint, title, content string) (*models.Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, common.Validation("Title and content cannot be empty")
	}
	if err := checkTitleLength(title); err != nil {
		return nil, err
	}

	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", id, models.PostStatusActive).First(&post).Error; err != nil {
			return err
		}
		snapshot := models.PostHistory{
			PostID:          post.ID,
			PreviousContent: post.Content,
			EditedAt:        s.now(),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}
		post.Title = title
		post.Content = content
		post.UpdatedAt = s.now()
		return tx.Model(&post).Updates(map[string]interface{}{
			"title":      post.Title,
			"content":    post.Content,
			"updated_at": post.UpdatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Post not found")
		}
		return nil, err
	}
	s.cache.Bump(ctx)
	return &post, nil
}

// History returns the edit snapshots of a post, newest first.
func (s *PostService) History(ctx context.Context, id uint) ([]HistoryEntry, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	var rows []models.PostHistory
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", id).
		Order("edited_at DESC").Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, HistoryEntry{EditedAt: r.EditedAt, PreviousContent: r.PreviousContent})
	}
	return entries, nil
}

// SoftDelete marks a post deleted. Deleting a deleted post is a no-op.
func (s *PostService) SoftDelete(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsActive() {
		return post, nil
	}
	post.MarkDeleted(s.now())
	if err := s.saveStatus(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Restore clears a soft delete.
func (s *PostService) Restore(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.IsActive() {
		return post, nil
	}
	post.MarkRestored()
	if err := s.saveStatus(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) saveStatus(ctx context.Context, post *models.Post) error {
	err := s.db.WithContext(ctx).Model(post).
		Updates(map[string]interface{}{
			"status":     post.Status,
			"deleted_at": post.DeletedAt,
			"updated_at": s.now(),
		}).Error
	if err != nil {
		return err
	}
	s.cache.Bump(ctx)
	return nil
}

func (s *PostService) find(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Post not found")
		}
		return nil, err
	}
	return &post, nil
}
