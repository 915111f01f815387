package tweets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/metrics"
	"github.com/R3E-Network/microblog/internal/app/storage"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// Authenticator resolves api keys to users.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (user.User, error)
}

// FileRemover deletes stored media files.
type FileRemover interface {
	RemoveFiles(urls []string)
}

// Store is the persistence surface the tweets service needs.
type Store interface {
	storage.TweetStore
	storage.MediaStore
	storage.LikeStore
}

// Service manages tweets, likes and feeds.
type Service struct {
	auth  Authenticator
	store Store
	files FileRemover
	log   *logger.Logger
}

// New constructs a tweets service. files may be nil when no media files are
// kept on disk.
func New(auth Authenticator, store Store, files FileRemover, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tweets")
	}
	return &Service{auth: auth, store: store, files: files, log: log}
}

// Create posts a tweet for the key owner and attaches the listed media.
func (s *Service) Create(ctx context.Context, apiKey, content string, mediaIDs []int64) (int64, error) {
	author, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > tweet.MaxContentLength {
		return 0, svcerrors.Validation(fmt.Sprintf("Tweet content must be between 1 and %d characters", tweet.MaxContentLength))
	}

	ids := dedupe(mediaIDs)
	missing := svcerrors.NotFound("Some media files not found")
	if len(ids) > 0 {
		found, err := s.store.ListMediaByIDs(ctx, ids)
		if err != nil {
			return 0, fmt.Errorf("list media: %w", err)
		}
		if len(found) != len(ids) {
			return 0, missing
		}
		for _, m := range found {
			if m.UserID != author.ID || m.Attached() {
				return 0, missing
			}
		}
	}

	created, err := s.store.CreateTweet(ctx, tweet.Tweet{Content: content, UserID: author.ID}, ids)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, missing
	}
	if err != nil {
		return 0, fmt.Errorf("create tweet: %w", err)
	}

	metrics.RecordTweetCreated()
	s.log.WithField("tweet_id", created.ID).
		WithField("user_id", author.ID).
		WithField("media", len(ids)).
		Info("tweet created")
	return created.ID, nil
}

// Delete removes a tweet owned by the key owner, along with its likes and
// media.
func (s *Service) Delete(ctx context.Context, apiKey string, tweetID int64) error {
	caller, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return err
	}

	notFound := svcerrors.NotFound("Tweet not found or belongs to another user")
	t, err := s.store.GetTweet(ctx, tweetID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("get tweet %d: %w", tweetID, err)
	}
	if t.UserID != caller.ID {
		return notFound
	}

	attached, err := s.store.ListMediaByTweet(ctx, tweetID)
	if err != nil {
		return fmt.Errorf("list tweet media: %w", err)
	}
	if err := s.store.DeleteTweet(ctx, tweetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound
		}
		return fmt.Errorf("delete tweet %d: %w", tweetID, err)
	}

	if s.files != nil && len(attached) > 0 {
		urls := make([]string, len(attached))
		for i, m := range attached {
			urls[i] = m.URL
		}
		s.files.RemoveFiles(urls)
	}

	metrics.RecordTweetDeleted()
	s.log.WithField("tweet_id", tweetID).
		WithField("user_id", caller.ID).
		Info("tweet deleted")
	return nil
}

// Like records that the key owner likes tweetID.
func (s *Service) Like(ctx context.Context, apiKey string, tweetID int64) error {
	caller, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return err
	}

	notFound := svcerrors.NotFound("Tweet not found")
	if _, err := s.store.GetTweet(ctx, tweetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound
		}
		return fmt.Errorf("get tweet %d: %w", tweetID, err)
	}

	exists := svcerrors.Conflict(svcerrors.CodeLikeExists, "You have already liked this tweet")
	if _, err := s.store.GetLike(ctx, tweetID, caller.ID); err == nil {
		return exists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get like: %w", err)
	}

	if _, err := s.store.CreateLike(ctx, tweet.Like{UserID: caller.ID, TweetID: tweetID}); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return exists
		case errors.Is(err, storage.ErrNotFound):
			return notFound
		}
		return fmt.Errorf("create like: %w", err)
	}

	metrics.RecordLike(true)
	s.log.WithField("tweet_id", tweetID).
		WithField("user_id", caller.ID).
		Info("tweet liked")
	return nil
}

// Unlike removes the key owner's like from tweetID.
func (s *Service) Unlike(ctx context.Context, apiKey string, tweetID int64) error {
	caller, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLike(ctx, tweetID, caller.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("Like not found")
		}
		return fmt.Errorf("delete like: %w", err)
	}

	metrics.RecordLike(false)
	s.log.WithField("tweet_id", tweetID).
		WithField("user_id", caller.ID).
		Info("tweet unliked")
	return nil
}

// Feed returns the key owner's tweets and those of everyone they follow.
func (s *Service) Feed(ctx context.Context, apiKey string) ([]tweet.FeedEntry, error) {
	caller, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListFeed(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	if entries == nil {
		entries = []tweet.FeedEntry{}
	}
	return entries, nil
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
