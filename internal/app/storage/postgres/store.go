package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/storage"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- UserStore ----------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (name, api_key)
		VALUES ($1, $2)
		RETURNING id
	`, u.Name, u.APIKey).Scan(&u.ID)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, name, api_key FROM users WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, name, api_key FROM users WHERE api_key = $1
	`, apiKey)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var out []user.User
	if err := s.db.SelectContext(ctx, &out, `
		SELECT id, name, api_key FROM users ORDER BY id
	`); err != nil {
		return nil, err
	}
	return out, nil
}

// --- FollowStore --------------------------------------------------------------

func (s *Store) CreateFollow(ctx context.Context, f user.Follow) (user.Follow, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1, $2)
		RETURNING id
	`, f.FollowerID, f.FollowingID).Scan(&f.ID)
	if err != nil {
		return user.Follow{}, mapError(err)
	}
	return f, nil
}

func (s *Store) GetFollow(ctx context.Context, followerID, followingID int64) (user.Follow, error) {
	var f user.Follow
	err := s.db.GetContext(ctx, &f, `
		SELECT id, follower_id, following_id
		FROM follows
		WHERE follower_id = $1 AND following_id = $2
	`, followerID, followingID)
	if err != nil {
		return user.Follow{}, mapError(err)
	}
	return f, nil
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, followingID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND following_id = $2
	`, followerID, followingID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (s *Store) ListFollowers(ctx context.Context, userID int64) ([]user.Summary, error) {
	var out []user.Summary
	if err := s.db.SelectContext(ctx, &out, `
		SELECT u.id, u.name
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.id
	`, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListFollowing(ctx context.Context, userID int64) ([]user.Summary, error) {
	var out []user.Summary
	if err := s.db.SelectContext(ctx, &out, `
		SELECT u.id, u.name
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.id
	`, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// --- TweetStore ---------------------------------------------------------------

func (s *Store) CreateTweet(ctx context.Context, t tweet.Tweet, mediaIDs []int64) (tweet.Tweet, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return tweet.Tweet{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO tweets (content, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, t.Content, t.UserID).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return tweet.Tweet{}, mapError(err)
	}

	if len(mediaIDs) > 0 {
		result, err := tx.ExecContext(ctx, `
			UPDATE tweet_media
			SET tweet_id = $1
			WHERE id = ANY($2) AND user_id = $3 AND tweet_id IS NULL
		`, t.ID, pq.Array(mediaIDs), t.UserID)
		if err != nil {
			return tweet.Tweet{}, err
		}
		if rows, _ := result.RowsAffected(); rows != int64(len(mediaIDs)) {
			return tweet.Tweet{}, storage.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return tweet.Tweet{}, err
	}
	return t, nil
}

func (s *Store) GetTweet(ctx context.Context, id int64) (tweet.Tweet, error) {
	var t tweet.Tweet
	err := s.db.GetContext(ctx, &t, `
		SELECT id, content, user_id, created_at FROM tweets WHERE id = $1
	`, id)
	if err != nil {
		return tweet.Tweet{}, mapError(err)
	}
	return t, nil
}

func (s *Store) DeleteTweet(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tweets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

type feedRow struct {
	ID         int64     `db:"id"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	AuthorID   int64     `db:"author_id"`
	AuthorName string    `db:"author_name"`
}

type attachmentRow struct {
	TweetID int64  `db:"tweet_id"`
	URL     string `db:"url"`
}

type likerRow struct {
	TweetID int64  `db:"tweet_id"`
	UserID  int64  `db:"user_id"`
	Name    string `db:"name"`
}

func (s *Store) ListFeed(ctx context.Context, userID int64) ([]tweet.FeedEntry, error) {
	var rows []feedRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.content, t.created_at, u.id AS author_id, u.name AS author_name
		FROM tweets t
		JOIN users u ON u.id = t.user_id
		LEFT JOIN likes l ON l.tweet_id = t.id
		WHERE t.user_id = $1
		   OR t.user_id IN (SELECT following_id FROM follows WHERE follower_id = $1)
		GROUP BY t.id, u.id
		ORDER BY COUNT(l.id) DESC, t.created_at DESC, t.id DESC
	`, userID); err != nil {
		return nil, fmt.Errorf("select feed: %w", err)
	}
	if len(rows) == 0 {
		return []tweet.FeedEntry{}, nil
	}

	ids := make([]int64, len(rows))
	entries := make([]tweet.FeedEntry, len(rows))
	index := make(map[int64]int, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		index[row.ID] = i
		entries[i] = tweet.FeedEntry{
			ID:          row.ID,
			Content:     row.Content,
			Attachments: []string{},
			Author:      user.Summary{ID: row.AuthorID, Name: row.AuthorName},
			Likes:       []tweet.Liker{},
			CreatedAt:   row.CreatedAt,
		}
	}

	var attachments []attachmentRow
	if err := s.db.SelectContext(ctx, &attachments, `
		SELECT tweet_id, url FROM tweet_media
		WHERE tweet_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select attachments: %w", err)
	}
	for _, a := range attachments {
		i := index[a.TweetID]
		entries[i].Attachments = append(entries[i].Attachments, a.URL)
	}

	var likers []likerRow
	if err := s.db.SelectContext(ctx, &likers, `
		SELECT l.tweet_id, u.id AS user_id, u.name
		FROM likes l
		JOIN users u ON u.id = l.user_id
		WHERE l.tweet_id = ANY($1)
		ORDER BY l.id
	`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select likes: %w", err)
	}
	for _, l := range likers {
		i := index[l.TweetID]
		entries[i].Likes = append(entries[i].Likes, tweet.Liker{UserID: l.UserID, Name: l.Name})
	}

	return entries, nil
}

// --- MediaStore ---------------------------------------------------------------

const mediaColumns = `id, url, user_id, tweet_id, created_at`

func (s *Store) CreateMedia(ctx context.Context, m tweet.Media) (tweet.Media, error) {
	m.TweetID = nil
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO tweet_media (url, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, m.URL, m.UserID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return tweet.Media{}, mapError(err)
	}
	return m, nil
}

func (s *Store) ListMediaByIDs(ctx context.Context, ids []int64) ([]tweet.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []tweet.Media
	if err := s.db.SelectContext(ctx, &out, `
		SELECT `+mediaColumns+` FROM tweet_media WHERE id = ANY($1) ORDER BY id
	`, pq.Array(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListMediaByTweet(ctx context.Context, tweetID int64) ([]tweet.Media, error) {
	var out []tweet.Media
	if err := s.db.SelectContext(ctx, &out, `
		SELECT `+mediaColumns+` FROM tweet_media WHERE tweet_id = $1 ORDER BY id
	`, tweetID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListOrphanMedia(ctx context.Context, createdBefore time.Time) ([]tweet.Media, error) {
	var out []tweet.Media
	if err := s.db.SelectContext(ctx, &out, `
		SELECT `+mediaColumns+` FROM tweet_media
		WHERE tweet_id IS NULL AND created_at < $1
		ORDER BY id
	`, createdBefore); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteOrphanMedia(ctx context.Context, id int64, createdBefore time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tweet_media
		WHERE id = $1 AND tweet_id IS NULL AND created_at < $2
	`, id, createdBefore)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// --- LikeStore ----------------------------------------------------------------

func (s *Store) CreateLike(ctx context.Context, l tweet.Like) (tweet.Like, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO likes (user_id, tweet_id)
		VALUES ($1, $2)
		RETURNING id
	`, l.UserID, l.TweetID).Scan(&l.ID)
	if err != nil {
		return tweet.Like{}, mapError(err)
	}
	return l, nil
}

func (s *Store) GetLike(ctx context.Context, tweetID, userID int64) (tweet.Like, error) {
	var l tweet.Like
	err := s.db.GetContext(ctx, &l, `
		SELECT id, user_id, tweet_id FROM likes WHERE tweet_id = $1 AND user_id = $2
	`, tweetID, userID)
	if err != nil {
		return tweet.Like{}, mapError(err)
	}
	return l, nil
}

func (s *Store) DeleteLike(ctx context.Context, tweetID, userID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM likes WHERE tweet_id = $1 AND user_id = $2
	`, tweetID, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Constraint)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

func requireAffected(result sql.Result) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}
