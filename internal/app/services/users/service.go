package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/metrics"
	"github.com/R3E-Network/microblog/internal/app/storage"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// Service manages users and the follow graph.
type Service struct {
	users   storage.UserStore
	follows storage.FollowStore
	log     *logger.Logger
}

// New constructs a users service.
func New(users storage.UserStore, follows storage.FollowStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{users: users, follows: follows, log: log}
}

// Authenticate resolves the owner of apiKey. Keys match exactly.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (user.User, error) {
	if apiKey == "" {
		return user.User{}, svcerrors.Unauthorized("")
	}
	u, err := s.users.GetUserByAPIKey(ctx, apiKey)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, svcerrors.Unauthorized("")
	}
	if err != nil {
		return user.User{}, fmt.Errorf("lookup api key: %w", err)
	}
	return u, nil
}

// Me returns the profile of the key owner.
func (s *Service) Me(ctx context.Context, apiKey string) (user.Profile, error) {
	u, err := s.Authenticate(ctx, apiKey)
	if err != nil {
		return user.Profile{}, err
	}
	return s.profile(ctx, u)
}

// Profile returns the profile of any user.
func (s *Service) Profile(ctx context.Context, id int64) (user.Profile, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.Profile{}, svcerrors.NotFound("User not found")
	}
	if err != nil {
		return user.Profile{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return s.profile(ctx, u)
}

func (s *Service) profile(ctx context.Context, u user.User) (user.Profile, error) {
	followers, err := s.follows.ListFollowers(ctx, u.ID)
	if err != nil {
		return user.Profile{}, fmt.Errorf("list followers: %w", err)
	}
	following, err := s.follows.ListFollowing(ctx, u.ID)
	if err != nil {
		return user.Profile{}, fmt.Errorf("list following: %w", err)
	}
	if followers == nil {
		followers = []user.Summary{}
	}
	if following == nil {
		following = []user.Summary{}
	}
	return user.Profile{ID: u.ID, Name: u.Name, Followers: followers, Following: following}, nil
}

// Follow subscribes the key owner to targetID.
func (s *Service) Follow(ctx context.Context, apiKey string, targetID int64) error {
	me, err := s.Authenticate(ctx, apiKey)
	if err != nil {
		return err
	}
	notFound := svcerrors.NotFound("User not found or you try to follow yourself")
	if targetID == me.ID {
		return notFound
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound
		}
		return fmt.Errorf("get user %d: %w", targetID, err)
	}

	alreadyFollowing := svcerrors.Conflict(svcerrors.CodeFollowExists, "You are already following this user")
	if _, err := s.follows.GetFollow(ctx, me.ID, targetID); err == nil {
		return alreadyFollowing
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get follow: %w", err)
	}

	if _, err := s.follows.CreateFollow(ctx, user.Follow{FollowerID: me.ID, FollowingID: targetID}); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return alreadyFollowing
		case errors.Is(err, storage.ErrNotFound):
			return notFound
		}
		return fmt.Errorf("create follow: %w", err)
	}

	metrics.RecordFollow(true)
	s.log.WithField("follower_id", me.ID).
		WithField("following_id", targetID).
		Info("follow created")
	return nil
}

// Unfollow removes the key owner's subscription to targetID.
func (s *Service) Unfollow(ctx context.Context, apiKey string, targetID int64) error {
	me, err := s.Authenticate(ctx, apiKey)
	if err != nil {
		return err
	}
	if err := s.follows.DeleteFollow(ctx, me.ID, targetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("Follow not found")
		}
		return fmt.Errorf("delete follow: %w", err)
	}

	metrics.RecordFollow(false)
	s.log.WithField("follower_id", me.ID).
		WithField("following_id", targetID).
		Info("follow removed")
	return nil
}

// Create registers a user.
func (s *Service) Create(ctx context.Context, name, apiKey string) (user.User, error) {
	name = strings.TrimSpace(name)
	apiKey = strings.TrimSpace(apiKey)
	if name == "" {
		return user.User{}, svcerrors.Validation("name is required")
	}
	if apiKey == "" {
		return user.User{}, svcerrors.Validation("api key is required")
	}

	u, err := s.users.CreateUser(ctx, user.User{Name: name, APIKey: apiKey})
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, svcerrors.Validation("api key already in use")
	}
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.WithField("user_id", u.ID).
		WithField("name", u.Name).
		Info("user created")
	return u, nil
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}
