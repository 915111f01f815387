package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/microblog/internal/app/services/media"
	"github.com/R3E-Network/microblog/internal/app/services/tweets"
	"github.com/R3E-Network/microblog/internal/app/services/users"
	"github.com/R3E-Network/microblog/internal/app/storage"
	"github.com/R3E-Network/microblog/internal/app/storage/memory"
	"github.com/R3E-Network/microblog/internal/app/system"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users   storage.UserStore
	Follows storage.FollowStore
	Tweets  storage.TweetStore
	Media   storage.MediaStore
	Likes   storage.LikeStore
	Health  storage.Pinger
}

// Options tunes media handling.
type Options struct {
	UploadsDir      string
	MaxFileSize     int64
	JanitorSchedule string
	OrphanTTL       time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	health  storage.Pinger

	Users  *users.Service
	Tweets *tweets.Service
	Media  *media.Service
}

type tweetStore struct {
	storage.TweetStore
	storage.MediaStore
	storage.LikeStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Follows == nil {
		stores.Follows = mem
	}
	if stores.Tweets == nil {
		stores.Tweets = mem
	}
	if stores.Media == nil {
		stores.Media = mem
	}
	if stores.Likes == nil {
		stores.Likes = mem
	}
	if stores.Health == nil {
		stores.Health = mem
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, stores.Follows, log.Named("users"))
	mediaService := media.New(userService, stores.Media, opts.UploadsDir, opts.MaxFileSize, log.Named("media"))
	tweetService := tweets.New(userService, tweetStore{
		TweetStore: stores.Tweets,
		MediaStore: stores.Media,
		LikeStore:  stores.Likes,
	}, mediaService, log.Named("tweets"))

	janitor := media.NewJanitor(mediaService, stores.Media, opts.JanitorSchedule, opts.OrphanTTL, log.Named("media-janitor"))
	if err := manager.Register(janitor); err != nil {
		return nil, fmt.Errorf("register %s: %w", janitor.Name(), err)
	}

	return &Application{
		manager: manager,
		log:     log,
		health:  stores.Health,
		Users:   userService,
		Tweets:  tweetService,
		Media:   mediaService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Ping checks the backing storage.
func (a *Application) Ping(ctx context.Context) error {
	return a.health.Ping(ctx)
}

// Services lists the registered lifecycle services.
func (a *Application) Services() []string {
	return a.manager.Services()
}
