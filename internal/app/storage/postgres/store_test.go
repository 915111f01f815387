package postgres

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/storage"
	"github.com/R3E-Network/microblog/internal/platform/migrations"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs("alice", "key").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs("bob", "key").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_api_key_key"})

	u, err := store.CreateUser(ctx, user.User{Name: "alice", APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	_, err = store.CreateUser(ctx, user.User{Name: "bob", APIKey: "key"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestGetUserByAPIKey(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(q("FROM users WHERE api_key = $1")).
		WithArgs("test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "api_key"}).AddRow(1, "alice", "test"))
	mock.ExpectQuery(q("FROM users WHERE api_key = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	u, err := store.GetUserByAPIKey(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, user.User{ID: 1, Name: "alice", APIKey: "test"}, u)

	_, err = store.GetUserByAPIKey(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteFollowRequiresRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(q("DELETE FROM follows")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteFollow(context.Background(), 1, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteOrphanMediaIsConditional(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(q("DELETE FROM tweet_media")+`\s+WHERE id = \$1 AND tweet_id IS NULL AND created_at < \$2`).
		WithArgs(int64(7), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteOrphanMedia(context.Background(), 7, cutoff)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateTweetAttachesMediaInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO tweets")).
		WithArgs("hello", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, now))
	mock.ExpectExec(q("UPDATE tweet_media")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tw, err := store.CreateTweet(context.Background(), tweet.Tweet{Content: "hello", UserID: 1}, []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(5), tw.ID)
	assert.Equal(t, now, tw.CreatedAt)
}

func TestCreateTweetRollsBackOnMissingMedia(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO tweets")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))
	mock.ExpectExec(q("UPDATE tweet_media")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, err := store.CreateTweet(context.Background(), tweet.Tweet{Content: "hello", UserID: 1}, []int64{3, 4})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListFeedExpandsEntries(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM tweets t")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "created_at", "author_id", "author_name"}).
			AddRow(9, "popular", now.Add(-time.Hour), 2, "bob").
			AddRow(8, "mine", now, 1, "alice"))
	mock.ExpectQuery(q("SELECT tweet_id, url FROM tweet_media")).
		WillReturnRows(sqlmock.NewRows([]string{"tweet_id", "url"}).
			AddRow(9, "uploads/a.png"))
	mock.ExpectQuery(q("FROM likes l")).
		WillReturnRows(sqlmock.NewRows([]string{"tweet_id", "user_id", "name"}).
			AddRow(9, 1, "alice"))

	feed, err := store.ListFeed(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, feed, 2)

	assert.Equal(t, int64(9), feed[0].ID)
	assert.Equal(t, []string{"uploads/a.png"}, feed[0].Attachments)
	assert.Equal(t, []tweet.Liker{{UserID: 1, Name: "alice"}}, feed[0].Likes)
	assert.Equal(t, user.Summary{ID: 2, Name: "bob"}, feed[0].Author)

	assert.Equal(t, int64(8), feed[1].ID)
	assert.Empty(t, feed[1].Attachments)
	assert.NotNil(t, feed[1].Attachments)
	assert.NotNil(t, feed[1].Likes)
}

func TestListFeedEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(q("FROM tweets t")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "created_at", "author_id", "author_name"}))

	feed, err := store.ListFeed(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestCreateLikeMapsForeignKeyToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(q("INSERT INTO likes")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "likes_tweet_id_fkey"})

	_, err := store.CreateLike(context.Background(), tweet.Like{UserID: 1, TweetID: 99})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, migrations.Up(ctx, db))

	store := New(db)
	suffix := uuid.NewString()

	alice, err := store.CreateUser(ctx, user.User{Name: "alice", APIKey: "alice-" + suffix})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, user.User{Name: "bob", APIKey: "bob-" + suffix})
	require.NoError(t, err)

	_, err = store.CreateFollow(ctx, user.Follow{FollowerID: alice.ID, FollowingID: bob.ID})
	require.NoError(t, err)
	_, err = store.CreateFollow(ctx, user.Follow{FollowerID: alice.ID, FollowingID: bob.ID})
	assert.ErrorIs(t, err, storage.ErrConflict)

	media, err := store.CreateMedia(ctx, tweet.Media{UserID: bob.ID, URL: "uploads/" + suffix + ".png"})
	require.NoError(t, err)

	_, err = store.CreateTweet(ctx, tweet.Tweet{Content: "stolen", UserID: alice.ID}, []int64{media.ID})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tw, err := store.CreateTweet(ctx, tweet.Tweet{Content: "hello", UserID: bob.ID}, []int64{media.ID})
	require.NoError(t, err)

	_, err = store.CreateLike(ctx, tweet.Like{UserID: alice.ID, TweetID: tw.ID})
	require.NoError(t, err)

	feed, err := store.ListFeed(ctx, alice.ID)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Equal(t, tw.ID, feed[0].ID)
	assert.Equal(t, []string{media.URL}, feed[0].Attachments)

	require.NoError(t, store.DeleteTweet(ctx, tw.ID))
	attached, err := store.ListMediaByTweet(ctx, tw.ID)
	require.NoError(t, err)
	assert.Empty(t, attached)
}
