package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"

	"boomscore/identity/internal/ids"
	"boomscore/identity/internal/media/sniffer"
	"boomscore/identity/internal/media/svg"
	"boomscore/identity/internal/models"
	"boomscore/identity/internal/repository"
)

const MaxAvatarBytes = 2 << 20

var ErrAvatarStorageDisabled = errors.New("avatar storage not configured")

type AvatarStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type AvatarInput struct {
	UserID string
	File   io.Reader
	Header http.Header
}

type AvatarService struct {
	users UserStore
	store AvatarStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewAvatarService accepts a nil store; uploads then fail with ErrAvatarStorageDisabled.
func NewAvatarService(users UserStore, store AvatarStore, log zerolog.Logger) *AvatarService {
	return &AvatarService{users: users, store: store, log: log, now: time.Now}
}

func (s *AvatarService) Upload(ctx context.Context, input AvatarInput) (models.User, error) {
	if s.store == nil {
		return models.User{}, ErrAvatarStorageDisabled
	}
	if input.File == nil {
		return models.User{}, validationError("file is required")
	}

	data, err := io.ReadAll(io.LimitReader(input.File, MaxAvatarBytes+1))
	if err != nil {
		return models.User{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return models.User{}, validationError("file is empty")
	}
	if len(data) > MaxAvatarBytes {
		return models.User{}, validationError("file exceeds %d bytes", MaxAvatarBytes)
	}

	head := data
	if len(head) > sniffer.HeadSize {
		head = head[:sniffer.HeadSize]
	}
	result, err := sniffer.Sniff(head)
	if err != nil {
		return models.User{}, validationError("%v", err)
	}

	if declared := sniffer.DeclaredType(input.Header); declared != "" && declared != result.MIME {
		return models.User{}, validationError("content type mismatch: declared %s, actual %s", declared, result.MIME)
	}

	if result.Format == sniffer.FormatSVG {
		data, err = svg.Sanitize(data)
		if err != nil {
			return models.User{}, validationError("%v", err)
		}
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	key := path.Join("avatars", user.ID, fmt.Sprintf("%s.%s", ids.New(), result.Extension()))
	url, err := s.store.Put(ctx, key, data, result.MIME)
	if err != nil {
		return models.User{}, err
	}

	user.AvatarURL = &url
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("save avatar url: %w", err)
	}

	s.log.Debug().Str("user_id", user.ID).Str("object", key).Int("size", len(data)).Msg("avatar stored")
	return user, nil
}
