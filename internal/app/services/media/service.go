package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/R3E-Network/microblog/internal/app/domain/tweet"
	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/metrics"
	"github.com/R3E-Network/microblog/internal/app/storage"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// DefaultMaxSize is the upload limit applied when none is configured.
const DefaultMaxSize int64 = 5 * 1024 * 1024

// URLPrefix is prepended to stored file names to form media urls.
const URLPrefix = "uploads/"

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// Authenticator resolves api keys to users.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (user.User, error)
}

// Service stores uploaded images on disk and records them.
type Service struct {
	auth    Authenticator
	store   storage.MediaStore
	dir     string
	maxSize int64
	log     *logger.Logger
}

// New constructs a media service writing into dir.
func New(auth Authenticator, store storage.MediaStore, dir string, maxSize int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("media")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	return &Service{auth: auth, store: store, dir: dir, maxSize: maxSize, log: log}
}

// Dir returns the uploads directory.
func (s *Service) Dir() string { return s.dir }

// MaxSize returns the upload limit in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// Upload validates and stores an image owned by the key owner, returning the
// new media id.
func (s *Service) Upload(ctx context.Context, apiKey, filename, contentType string, r io.Reader) (int64, error) {
	owner, err := s.auth.Authenticate(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	defaultExt, ok := allowedTypes[contentType]
	if !ok {
		return 0, svcerrors.Validation("Only JPEG/PNG images allowed")
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return 0, fmt.Errorf("read upload: %w", err)
	}
	if n > s.maxSize {
		return 0, svcerrors.TooLarge(fmt.Sprintf("File too large. Max size: %dMB", s.maxSize/1024/1024))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !extPattern.MatchString(ext) {
		ext = defaultExt
	}
	name := uuid.NewString() + ext

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}

	m, err := s.store.CreateMedia(ctx, tweet.Media{URL: URLPrefix + name, UserID: owner.ID})
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("record media: %w", err)
	}

	metrics.RecordMediaUpload(contentType, n)
	s.log.WithField("media_id", m.ID).
		WithField("user_id", owner.ID).
		WithField("size", n).
		Info("media uploaded")
	return m.ID, nil
}

// RemoveFiles deletes the stored files behind urls. Failures are logged and
// otherwise ignored.
func (s *Service) RemoveFiles(urls []string) {
	for _, url := range urls {
		name := filepath.Base(url)
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).WithField("url", url).Warn("remove media file failed")
		}
	}
}
