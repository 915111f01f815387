package users

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

func newService(t *testing.T) (*Service, []user.User) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, logger.NewDiscard())
	var out []user.User
	for _, fixture := range [][2]string{{"alice", "test"}, {"bob", "bob-key"}, {"carol", "carol-key"}} {
		u, err := svc.Create(context.Background(), fixture[0], fixture[1])
		require.NoError(t, err)
		out = append(out, u)
	}
	return svc, out
}

func assertCode(t *testing.T, err error, code svcerrors.Code, status int) {
	t.Helper()
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se, "expected service error, got %v", err)
	assert.Equal(t, code, se.Code)
	assert.Equal(t, status, se.HTTPStatus)
}

func TestAuthenticate(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, u.ID)

	_, err = svc.Authenticate(ctx, "")
	assertCode(t, err, svcerrors.CodeAuthentication, http.StatusUnauthorized)

	_, err = svc.Authenticate(ctx, "nope")
	assertCode(t, err, svcerrors.CodeAuthentication, http.StatusUnauthorized)

	for _, padded := range []string{" test", "test ", " "} {
		_, err = svc.Authenticate(ctx, padded)
		assertCode(t, err, svcerrors.CodeAuthentication, http.StatusUnauthorized)
	}
}

func TestFollowLifecycle(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	alice, bob := users[0], users[1]

	require.NoError(t, svc.Follow(ctx, "test", bob.ID))
	assertCode(t, svc.Follow(ctx, "test", bob.ID), svcerrors.CodeFollowExists, http.StatusConflict)

	me, err := svc.Me(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, []user.Summary{{ID: bob.ID, Name: "bob"}}, me.Following)
	assert.Empty(t, me.Followers)
	assert.NotNil(t, me.Followers)

	profile, err := svc.Profile(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []user.Summary{{ID: alice.ID, Name: "alice"}}, profile.Followers)

	require.NoError(t, svc.Unfollow(ctx, "test", bob.ID))
	assertCode(t, svc.Unfollow(ctx, "test", bob.ID), svcerrors.CodeNotFound, http.StatusNotFound)
}

func TestFollowRejectsSelfAndMissing(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()

	err := svc.Follow(ctx, "test", users[0].ID)
	assertCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)
	assert.Equal(t, "User not found or you try to follow yourself", svcerrors.GetServiceError(err).Message)

	assertCode(t, svc.Follow(ctx, "test", 999), svcerrors.CodeNotFound, http.StatusNotFound)
	assertCode(t, svc.Follow(ctx, "bad", users[1].ID), svcerrors.CodeAuthentication, http.StatusUnauthorized)
}

func TestProfileNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Profile(context.Background(), 42)
	assertCode(t, err, svcerrors.CodeNotFound, http.StatusNotFound)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, " ", "k")
	assertCode(t, err, svcerrors.CodeValidation, http.StatusBadRequest)
	_, err = svc.Create(ctx, "dave", "test")
	assertCode(t, err, svcerrors.CodeValidation, http.StatusBadRequest)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
