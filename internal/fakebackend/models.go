// Package fakebackend is a local stand-in for the hosted backend-as-a-service:
// users, posts, comments, votes and a canned AI insight endpoint, stored with
// gorm on sqlite or postgres.
package fakebackend

import "time"

// User is a registered account.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Password       string    `gorm:"not null" json:"-"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Post is an idea. The tallies are kept in step with the votes table.
type Post struct {
	ID            uint   `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Content       string `gorm:"type:text;not null"`
	UserID        uint   `gorm:"index;not null"`
	User          User
	UpvoteCount   int `gorm:"not null;default:0"`
	DownvoteCount int `gorm:"not null;default:0"`
	CommentCount  int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Comment is a reply under a post.
type Comment struct {
	ID        uint `gorm:"primaryKey"`
	PostID    uint `gorm:"index;not null"`
	UserID    uint `gorm:"index;not null"`
	User      User
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// Vote is one user's current vote on one post.
type Vote struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"uniqueIndex:idx_vote_post_user;not null"`
	UserID    uint   `gorm:"uniqueIndex:idx_vote_post_user;not null"`
	Type      string `gorm:"size:8;not null"`
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Receipt remembers the response to an idempotent mutation.
type Receipt struct {
	IdempotencyKey string `gorm:"primaryKey;size:64"`
	Response       string `gorm:"type:text;not null"`
	CreatedAt      time.Time
}

// AllModels lists the tables to migrate.
func AllModels() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Vote{}, &Receipt{}}
}
