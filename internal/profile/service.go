// Package profile manages user profile pictures.
package profile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tomasdev42/crypto-portfolio/internal/apperr"
	"github.com/tomasdev42/crypto-portfolio/internal/identity"
	"github.com/tomasdev42/crypto-portfolio/internal/storage"
)

// MaxPictureSize is the largest accepted upload.
const MaxPictureSize = 3 << 20

const keyBytes = 32

var (
	errNoFile          = apperr.New(apperr.ErrValidation, "No file uploaded")
	errTooLarge        = apperr.New(apperr.ErrValidation, "Image cannot exceed 3MB")
	errNotImage        = apperr.New(apperr.ErrValidation, "File must be an image")
	errUserNotFound    = apperr.New(apperr.ErrNotFound, "User not found")
	errPictureNotFound = apperr.New(apperr.ErrNotFound, "Profile picture not found")
)

// Picture describes a stored profile picture.
type Picture struct {
	Key string `json:"profilePicture"`
	URL string `json:"url"`
}

// Service stores profile pictures and records their keys on the user.
type Service struct {
	users  identity.Repository
	store  storage.BlobStore
	logger *slog.Logger
}

// NewService wires the profile picture service.
func NewService(users identity.Repository, store storage.BlobStore, logger *slog.Logger) *Service {
	return &Service{users: users, store: store, logger: logger}
}

// Upload stores data as the user's new profile picture. The previous picture
// is removed, on a best effort basis, once the user record points at the new
// one.
func (s *Service) Upload(ctx context.Context, userID string, data []byte) (Picture, error) {
	if len(data) == 0 {
		return Picture{}, errNoFile
	}
	if len(data) > MaxPictureSize {
		return Picture{}, errTooLarge
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return Picture{}, errNotImage
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Picture{}, errUserNotFound
		}
		return Picture{}, err
	}

	key, err := randomKey()
	if err != nil {
		return Picture{}, err
	}
	if err := s.store.Put(ctx, key, contentType, data); err != nil {
		return Picture{}, err
	}
	if err := s.users.UpdateProfilePicture(ctx, userID, key); err != nil {
		s.discard(ctx, userID, key)
		return Picture{}, err
	}
	if user.ProfilePicture != "" {
		s.discard(ctx, userID, user.ProfilePicture)
	}

	url, err := s.store.URL(ctx, key)
	if err != nil {
		return Picture{}, err
	}
	s.logger.Info("profile picture uploaded", slog.String("user_id", userID))
	return Picture{Key: key, URL: url}, nil
}

// Get returns the user's current profile picture.
func (s *Service) Get(ctx context.Context, userID string) (Picture, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Picture{}, errPictureNotFound
		}
		return Picture{}, err
	}
	if user.ProfilePicture == "" {
		return Picture{}, errPictureNotFound
	}
	url, err := s.store.URL(ctx, user.ProfilePicture)
	if err != nil {
		return Picture{}, err
	}
	return Picture{Key: user.ProfilePicture, URL: url}, nil
}

// discard removes a blob no user record points at. Failures only leave an
// orphaned blob behind and are logged.
func (s *Service) discard(ctx context.Context, userID, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("delete profile picture failed",
			slog.String("user_id", userID), slog.String("key", key), slog.Any("error", err))
	}
}

func randomKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
