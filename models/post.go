package models

import "time"

// Post status values. Every read path filters on Status explicitly.
const (
	PostStatusActive  = "active"
	PostStatusDeleted = "deleted"
)

// TitleMaxLength bounds Post.Title.
const TitleMaxLength = 200

// Post is an AI generated social post. Posts are soft deleted, never removed.
type Post struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Prompt    string        `gorm:"type:text;not null" json:"prompt"`
	Title     string        `gorm:"size:200" json:"title"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	Status    string        `gorm:"size:16;index;not null;default:'active'" json:"status"`
	CreatedAt time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at"`
	History   []PostHistory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// IsActive reports whether the post has not been soft deleted.
func (p *Post) IsActive() bool {
	return p.Status == PostStatusActive
}

// MarkDeleted soft deletes the post at the given time.
func (p *Post) MarkDeleted(at time.Time) {
	p.Status = PostStatusDeleted
	p.DeletedAt = &at
}

// MarkRestored clears a soft delete.
func (p *Post) MarkRestored() {
	p.Status = PostStatusActive
	p.DeletedAt = nil
}
