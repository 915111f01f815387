package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("storage: conflict")
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// FollowStore persists the follow graph.
type FollowStore interface {
	CreateFollow(ctx context.Context, f user.Follow) (user.Follow, error)
	GetFollow(ctx context.Context, followerID, followingID int64) (user.Follow, error)
	DeleteFollow(ctx context.Context, followerID, followingID int64) error
	ListFollowers(ctx context.Context, userID int64) ([]user.Summary, error)
	ListFollowing(ctx context.Context, userID int64) ([]user.Summary, error)
}

// TweetStore persists tweets and assembles feeds.
type TweetStore interface {
	// CreateTweet inserts the tweet and attaches every listed media in one
	// step. It fails with ErrNotFound, leaving nothing behind, when a media
	// id is unknown, owned by someone else or already attached.
	CreateTweet(ctx context.Context, t tweet.Tweet, mediaIDs []int64) (tweet.Tweet, error)
	GetTweet(ctx context.Context, id int64) (tweet.Tweet, error)
	// DeleteTweet removes the tweet together with its likes and media rows.
	DeleteTweet(ctx context.Context, id int64) error
	// ListFeed returns tweets authored by userID or by anyone userID follows,
	// each once, most liked first and newest first among equals.
	ListFeed(ctx context.Context, userID int64) ([]tweet.FeedEntry, error)
}

// MediaStore persists uploaded media records.
type MediaStore interface {
	CreateMedia(ctx context.Context, m tweet.Media) (tweet.Media, error)
	ListMediaByIDs(ctx context.Context, ids []int64) ([]tweet.Media, error)
	ListMediaByTweet(ctx context.Context, tweetID int64) ([]tweet.Media, error)
	ListOrphanMedia(ctx context.Context, createdBefore time.Time) ([]tweet.Media, error)
	// DeleteOrphanMedia removes the media only while it is still unattached
	// and older than createdBefore; otherwise it returns ErrNotFound.
	DeleteOrphanMedia(ctx context.Context, id int64, createdBefore time.Time) error
}

// LikeStore persists likes.
type LikeStore interface {
	CreateLike(ctx context.Context, l tweet.Like) (tweet.Like, error)
	GetLike(ctx context.Context, tweetID, userID int64) (tweet.Like, error)
	DeleteLike(ctx context.Context, tweetID, userID int64) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	FollowStore
	TweetStore
	MediaStore
	LikeStore
	Pinger
}
