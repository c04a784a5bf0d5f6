package model

import (
	"strings"
	"time"
)

const (
	// MaxTitleLength bounds audio titles.
	MaxTitleLength = 120
	// MaxDescriptionLength bounds audio descriptions.
	MaxDescriptionLength = 500
)

// Audio represents a user-submitted audio post.
type Audio struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"-"`
	User        *UserRef `json:"user,omitempty"` // Owner identity, expanded on read
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AudioURL    string   `json:"audioUrl"`
	Duration    float64  `json:"duration"` // Seconds
	Tags        []string `json:"tags"`
	IsPrivate   bool     `json:"isPrivate"`
	Views       int64    `json:"views"`

	// Derived on read, never stored.
	Likes        []UserRef  `json:"likes"`
	Comments     []*Comment `json:"comments"`
	LikeCount    int64      `json:"likeCount"`
	CommentCount int64      `json:"commentCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AudioPage is the pagination envelope for audio listings.
type AudioPage struct {
	Audios      []*Audio `json:"audios"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	TotalAudios int64    `json:"totalAudios"`
}

// NormalizeTags trims, lowercases and deduplicates raw tag tokens,
// dropping empties. Order of first appearance is preserved.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// SplitTags parses a comma-separated tag string as submitted by the
// upload form and normalizes the result.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(s, ","))
}
