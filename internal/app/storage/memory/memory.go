package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu sync.RWMutex

	seq     map[string]int64
	now     func() time.Time
	users   map[int64]user.User
	byKey   map[string]int64
	follows map[int64]user.Follow
	tweets  map[int64]tweet.Tweet
	media   map[int64]tweet.Media
	likes   map[int64]tweet.Like
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		seq:     make(map[string]int64),
		now:     func() time.Time { return time.Now().UTC() },
		users:   make(map[int64]user.User),
		byKey:   make(map[string]int64),
		follows: make(map[int64]user.Follow),
		tweets:  make(map[int64]tweet.Tweet),
		media:   make(map[int64]tweet.Media),
		likes:   make(map[int64]tweet.Like),
	}
}

// WithClock overrides the timestamp source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) nextIDLocked(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// UserStore implementation -----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[u.APIKey]; exists {
		return user.User{}, storage.ErrConflict
	}
	u.ID = s.nextIDLocked("users")
	s.users[u.ID] = u
	s.byKey[u.APIKey] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByAPIKey(_ context.Context, apiKey string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[apiKey]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FollowStore implementation ---------------------------------------------------

func (s *Store) CreateFollow(_ context.Context, f user.Follow) (user.Follow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[f.FollowerID]; !ok {
		return user.Follow{}, storage.ErrNotFound
	}
	if _, ok := s.users[f.FollowingID]; !ok {
		return user.Follow{}, storage.ErrNotFound
	}
	if _, ok := s.findFollowLocked(f.FollowerID, f.FollowingID); ok {
		return user.Follow{}, storage.ErrConflict
	}
	f.ID = s.nextIDLocked("follows")
	s.follows[f.ID] = f
	return f, nil
}

func (s *Store) GetFollow(_ context.Context, followerID, followingID int64) (user.Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.findFollowLocked(followerID, followingID)
	if !ok {
		return user.Follow{}, storage.ErrNotFound
	}
	return f, nil
}

func (s *Store) DeleteFollow(_ context.Context, followerID, followingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.findFollowLocked(followerID, followingID)
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.follows, f.ID)
	return nil
}

func (s *Store) ListFollowers(_ context.Context, userID int64) ([]user.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []user.Summary
	for _, f := range s.sortedFollowsLocked() {
		if f.FollowingID == userID {
			out = append(out, s.users[f.FollowerID].Summary())
		}
	}
	return out, nil
}

func (s *Store) ListFollowing(_ context.Context, userID int64) ([]user.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []user.Summary
	for _, f := range s.sortedFollowsLocked() {
		if f.FollowerID == userID {
			out = append(out, s.users[f.FollowingID].Summary())
		}
	}
	return out, nil
}

func (s *Store) findFollowLocked(followerID, followingID int64) (user.Follow, bool) {
	for _, f := range s.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			return f, true
		}
	}
	return user.Follow{}, false
}

func (s *Store) sortedFollowsLocked() []user.Follow {
	out := make([]user.Follow, 0, len(s.follows))
	for _, f := range s.follows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TweetStore implementation ----------------------------------------------------

func (s *Store) CreateTweet(_ context.Context, t tweet.Tweet, mediaIDs []int64) (tweet.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[t.UserID]; !ok {
		return tweet.Tweet{}, storage.ErrNotFound
	}
	for _, id := range mediaIDs {
		m, ok := s.media[id]
		if !ok || m.UserID != t.UserID || m.Attached() {
			return tweet.Tweet{}, storage.ErrNotFound
		}
	}

	t.ID = s.nextIDLocked("tweets")
	t.CreatedAt = s.now()
	s.tweets[t.ID] = t

	for _, id := range mediaIDs {
		m := s.media[id]
		tweetID := t.ID
		m.TweetID = &tweetID
		s.media[id] = m
	}
	return t, nil
}

func (s *Store) GetTweet(_ context.Context, id int64) (tweet.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tweets[id]
	if !ok {
		return tweet.Tweet{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) DeleteTweet(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tweets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tweets, id)
	for likeID, l := range s.likes {
		if l.TweetID == id {
			delete(s.likes, likeID)
		}
	}
	for mediaID, m := range s.media {
		if m.TweetID != nil && *m.TweetID == id {
			delete(s.media, mediaID)
		}
	}
	return nil
}

func (s *Store) ListFeed(_ context.Context, userID int64) ([]tweet.FeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authors := map[int64]bool{userID: true}
	for _, f := range s.follows {
		if f.FollowerID == userID {
			authors[f.FollowingID] = true
		}
	}

	var entries []tweet.FeedEntry
	for _, t := range s.tweets {
		if !authors[t.UserID] {
			continue
		}
		entries = append(entries, s.expandLocked(t))
	}
	SortFeed(entries)
	return entries, nil
}

func (s *Store) expandLocked(t tweet.Tweet) tweet.FeedEntry {
	entry := tweet.FeedEntry{
		ID:          t.ID,
		Content:     t.Content,
		Attachments: []string{},
		Author:      s.users[t.UserID].Summary(),
		Likes:       []tweet.Liker{},
		CreatedAt:   t.CreatedAt,
	}

	var media []tweet.Media
	for _, m := range s.media {
		if m.TweetID != nil && *m.TweetID == t.ID {
			media = append(media, m)
		}
	}
	sort.Slice(media, func(i, j int) bool { return media[i].ID < media[j].ID })
	for _, m := range media {
		entry.Attachments = append(entry.Attachments, m.URL)
	}

	var likes []tweet.Like
	for _, l := range s.likes {
		if l.TweetID == t.ID {
			likes = append(likes, l)
		}
	}
	sort.Slice(likes, func(i, j int) bool { return likes[i].ID < likes[j].ID })
	for _, l := range likes {
		entry.Likes = append(entry.Likes, tweet.Liker{UserID: l.UserID, Name: s.users[l.UserID].Name})
	}
	return entry
}

// SortFeed orders entries by like count, then recency, then id, all
// descending.
func SortFeed(entries []tweet.FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if len(a.Likes) != len(b.Likes) {
			return len(a.Likes) > len(b.Likes)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// MediaStore implementation ----------------------------------------------------

func (s *Store) CreateMedia(_ context.Context, m tweet.Media) (tweet.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[m.UserID]; !ok {
		return tweet.Media{}, storage.ErrNotFound
	}
	m.ID = s.nextIDLocked("media")
	m.TweetID = nil
	m.CreatedAt = s.now()
	s.media[m.ID] = m
	return m, nil
}

func (s *Store) ListMediaByIDs(_ context.Context, ids []int64) ([]tweet.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tweet.Media
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if m, ok := s.media[id]; ok {
			out = append(out, cloneMedia(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListMediaByTweet(_ context.Context, tweetID int64) ([]tweet.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tweet.Media
	for _, m := range s.media {
		if m.TweetID != nil && *m.TweetID == tweetID {
			out = append(out, cloneMedia(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListOrphanMedia(_ context.Context, createdBefore time.Time) ([]tweet.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tweet.Media
	for _, m := range s.media {
		if !m.Attached() && m.CreatedAt.Before(createdBefore) {
			out = append(out, cloneMedia(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteOrphanMedia(_ context.Context, id int64, createdBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[id]
	if !ok || m.Attached() || !m.CreatedAt.Before(createdBefore) {
		return storage.ErrNotFound
	}
	delete(s.media, id)
	return nil
}

// LikeStore implementation -----------------------------------------------------

func (s *Store) CreateLike(_ context.Context, l tweet.Like) (tweet.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tweets[l.TweetID]; !ok {
		return tweet.Like{}, storage.ErrNotFound
	}
	if _, ok := s.users[l.UserID]; !ok {
		return tweet.Like{}, storage.ErrNotFound
	}
	if _, ok := s.findLikeLocked(l.TweetID, l.UserID); ok {
		return tweet.Like{}, storage.ErrConflict
	}
	l.ID = s.nextIDLocked("likes")
	s.likes[l.ID] = l
	return l, nil
}

func (s *Store) GetLike(_ context.Context, tweetID, userID int64) (tweet.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.findLikeLocked(tweetID, userID)
	if !ok {
		return tweet.Like{}, storage.ErrNotFound
	}
	return l, nil
}

func (s *Store) DeleteLike(_ context.Context, tweetID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.findLikeLocked(tweetID, userID)
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.likes, l.ID)
	return nil
}

func (s *Store) findLikeLocked(tweetID, userID int64) (tweet.Like, bool) {
	for _, l := range s.likes {
		if l.TweetID == tweetID && l.UserID == userID {
			return l, true
		}
	}
	return tweet.Like{}, false
}

func cloneMedia(m tweet.Media) tweet.Media {
	if m.TweetID != nil {
		id := *m.TweetID
		m.TweetID = &id
	}
	return m
}
