package tweets

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/services/users"
	"github.com/R3E-Network/microblog/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) RemoveFiles(urls []string) {
	r.removed = append(r.removed, urls...)
}

type fixture struct {
	store   *memory.Store
	users   *users.Service
	svc     *Service
	remover *recordingRemover
	ids     map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New().WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})
	log := logger.NewDiscard()
	userSvc := users.New(store, store, log)
	remover := &recordingRemover{}

	f := &fixture{
		store:   store,
		users:   userSvc,
		svc:     New(userSvc, store, remover, log),
		remover: remover,
		ids:     map[string]int64{},
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := userSvc.Create(context.Background(), name, name+"-key")
		require.NoError(t, err)
		f.ids[name] = u.ID
	}
	return f
}

func (f *fixture) media(t *testing.T, owner string) int64 {
	t.Helper()
	m, err := f.store.CreateMedia(context.Background(), tweet.Media{UserID: f.ids[owner], URL: "uploads/" + owner + ".png"})
	require.NoError(t, err)
	return m.ID
}

func requireCode(t *testing.T, err error, code svcerrors.Code, status int) {
	t.Helper()
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se, "expected service error, got %v", err)
	assert.Equal(t, code, se.Code)
	assert.Equal(t, status, se.HTTPStatus)
}

func TestCreateValidatesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "alice-key", "   ", nil)
	requireCode(t, err, svcerrors.CodeValidation, http.StatusBadRequest)

	_, err = f.svc.Create(ctx, "alice-key", strings.Repeat("x", 281), nil)
	requireCode(t, err, svcerrors.CodeValidation, http.StatusBadRequest)

	id, err := f.svc.Create(ctx, "alice-key", strings.Repeat("ж", 280), nil)
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = f.svc.Create(ctx, "bogus", "hi", nil)
	requireCode(t, err, svcerrors.CodeAuthentication, http.StatusUnauthorized)
}

func TestCreateAttachesOwnedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.media(t, "alice")
	theirs := f.media(t, "bob")

	_, err := f.svc.Create(ctx, "alice-key", "stolen", []int64{theirs})
	requireCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)

	_, err = f.svc.Create(ctx, "alice-key", "ghost", []int64{999})
	requireCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)

	id, err := f.svc.Create(ctx, "alice-key", "with pic", []int64{mine, mine})
	require.NoError(t, err)

	attached, err := f.store.ListMediaByTweet(ctx, id)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, mine, attached[0].ID)

	_, err = f.svc.Create(ctx, "alice-key", "reuse", []int64{mine})
	requireCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)
}

func TestDeleteRemovesMediaFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.Create(ctx, "alice-key", "bye", []int64{f.media(t, "alice")})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, "bob-key", id)
	requireCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)
	assert.Equal(t, "Tweet not found or belongs to another user", svcerrors.GetServiceError(err).Message)

	require.NoError(t, f.svc.Delete(ctx, "alice-key", id))
	assert.Equal(t, []string{"uploads/alice.png"}, f.remover.removed)

	requireCode(t, f.svc.Delete(ctx, "alice-key", id), svcerrors.CodeNotFound, http.StatusNotFound)
}

func TestLikeAndUnlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.Create(ctx, "alice-key", "like me", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Like(ctx, "bob-key", id))
	requireCode(t, f.svc.Like(ctx, "bob-key", id), svcerrors.CodeLikeExists, http.StatusConflict)
	requireCode(t, f.svc.Like(ctx, "bob-key", 999), svcerrors.CodeNotFound, http.StatusNotFound)

	require.NoError(t, f.svc.Unlike(ctx, "bob-key", id))
	err = f.svc.Unlike(ctx, "bob-key", id)
	requireCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)
	assert.Equal(t, "Like not found", svcerrors.GetServiceError(err).Message)
}

func TestFeedScopeAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own, err := f.svc.Create(ctx, "alice-key", "mine", nil)
	require.NoError(t, err)
	popular, err := f.svc.Create(ctx, "bob-key", "popular", nil)
	require.NoError(t, err)
	newest, err := f.svc.Create(ctx, "bob-key", "newest", nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "carol-key", "unseen", nil)
	require.NoError(t, err)

	require.NoError(t, f.users.Follow(ctx, "alice-key", f.ids["bob"]))
	require.NoError(t, f.svc.Like(ctx, "carol-key", popular))
	require.NoError(t, f.svc.Like(ctx, "alice-key", popular))

	feed, err := f.svc.Feed(ctx, "alice-key")
	require.NoError(t, err)

	var ids []int64
	for _, entry := range feed {
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []int64{popular, newest, own}, ids)
	assert.Len(t, feed[0].Likes, 2)
	assert.Equal(t, "bob", feed[0].Author.Name)

	empty, err := f.svc.Feed(ctx, "carol-key")
	require.NoError(t, err)
	assert.Len(t, empty, 1)
}
