package model

import "time"

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed in API responses
	Bio          string    `json:"bio,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserRef is the projection of a user embedded in other payloads:
// owner identity, liker lists, commenter identity. Credential and
// contact fields never appear here.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// UserSummary extends UserRef for search results and relationship
// listings, which also surface the bio and follower count.
type UserSummary struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar,omitempty"`
	Bio           string `json:"bio,omitempty"`
	FollowerCount int64  `json:"followerCount"`
}

// Profile is a user expanded with their relationship lists.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Followers []UserRef `json:"followers"`
	Following []UserRef `json:"following"`
	Audios    []*Audio  `json:"audios"`
	CreatedAt time.Time `json:"createdAt"`
}
