package model

import "time"

// MaxCommentLength bounds text comments.
const MaxCommentLength = 500

// Comment is a comment on an audio post: text content, an audio reply,
// or both. Managed by GORM; the derived fields are filled in by the
// repository on read.
type Comment struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	UserID        int64     `json:"-" gorm:"index;not null"`
	AudioID       int64     `json:"audioId" gorm:"index:idx_comments_audio_created,priority:1;not null"`
	Content       string    `json:"content" gorm:"size:500"`
	AudioURL      string    `json:"audioUrl,omitempty" gorm:"size:767"` // Optional audio reply
	AudioDuration float64   `json:"audioDuration,omitempty"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index:idx_comments_audio_created,priority:2"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// Derived on read, never stored.
	User      *UserRef `json:"user,omitempty" gorm:"-"`
	LikeCount int64    `json:"likeCount" gorm:"-"`
	Likes     []UserRef `json:"likes,omitempty" gorm:"-"`
}

// TableName keeps the table name explicit.
func (Comment) TableName() string {
	return "comments"
}

// CommentPage is the pagination envelope for comment listings.
type CommentPage struct {
	Comments      []*Comment `json:"comments"`
	CurrentPage   int        `json:"currentPage"`
	TotalPages    int        `json:"totalPages"`
	TotalComments int64      `json:"totalComments"`
}
