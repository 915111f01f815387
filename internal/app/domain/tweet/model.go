package tweet

import (
	"time"

	"github.com/R3E-Network/microblog/internal/app/domain/user"
)

// MaxContentLength bounds tweet text, counted in characters.
const MaxContentLength = 280

// Tweet is a short text post.
type Tweet struct {
	ID        int64     `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Media is an uploaded image. TweetID is nil until the media is attached to a
// tweet.
type Media struct {
	ID        int64     `db:"id" json:"id"`
	URL       string    `db:"url" json:"url"`
	UserID    int64     `db:"user_id" json:"user_id"`
	TweetID   *int64    `db:"tweet_id" json:"tweet_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attached reports whether the media belongs to a tweet.
func (m Media) Attached() bool {
	return m.TweetID != nil
}

// Like records that a user liked a tweet.
type Like struct {
	ID      int64 `db:"id" json:"id"`
	UserID  int64 `db:"user_id" json:"user_id"`
	TweetID int64 `db:"tweet_id" json:"tweet_id"`
}

// Liker is the short form of a like embedded in feed entries.
type Liker struct {
	UserID int64  `db:"user_id" json:"user_id"`
	Name   string `db:"name" json:"name"`
}

// FeedEntry is a fully expanded tweet as shown in a feed.
type FeedEntry struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Attachments []string     `json:"attachments"`
	Author      user.Summary `json:"author"`
	Likes       []Liker      `json:"likes"`
	CreatedAt   time.Time    `json:"-"`
}
