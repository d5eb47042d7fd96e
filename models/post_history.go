package models

import "time"

// PostHistory is an immutable snapshot of a post's content taken before an edit.
type PostHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PostID          uint      `gorm:"index;not null" json:"post_id"`
	PreviousContent string    `gorm:"type:text;not null" json:"previous_content"`
	EditedAt        time.Time `gorm:"index;not null" json:"edited_at"`
}

// TableName overrides the pluralized default.
func (PostHistory) TableName() string {
	return "post_history"
}
