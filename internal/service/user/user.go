package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

type AssetStorage interface {
	Upload(ctx context.Context, folder string, asset models.Asset) (string, error)
}

// Profile of authenticated user
// Never touches password hash nor refresh token
type UserService struct {
	storage repository.Storage
	assets  AssetStorage
}

func NewService(storage repository.Storage, assets AssetStorage) *UserService {
	return &UserService{
		storage: storage,
		assets:  assets,
	}
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}
	return user.Public(), nil
}

// Both full name and email are required
func (s *UserService) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" || email == "" {
		return models.User{}, apperrors.InvalidInput("full name and email are required")
	}

	return s.update(ctx, userID, repository.UpdateProfileParams{FullName: &fullName, Email: &email})
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar *models.Asset) (models.User, error) {
	if avatar == nil {
		return models.User{}, apperrors.InvalidInput("avatar file is missing")
	}

	url, err := s.assets.Upload(ctx, assets.FolderAvatars, *avatar)
	if err != nil {
		return models.User{}, fmt.Errorf("avatar upload: %w", err)
	}

	return s.update(ctx, userID, repository.UpdateProfileParams{Avatar: &url})
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, cover *models.Asset) (models.User, error) {
	if cover == nil {
		return models.User{}, apperrors.InvalidInput("cover image file is missing")
	}

	url, err := s.assets.Upload(ctx, assets.FolderCovers, *cover)
	if err != nil {
		return models.User{}, fmt.Errorf("cover image upload: %w", err)
	}

	return s.update(ctx, userID, repository.UpdateProfileParams{CoverImage: &url})
}

func (s *UserService) update(ctx context.Context, userID uuid.UUID, params repository.UpdateProfileParams) (models.User, error) {
	user, err := s.storage.User().UpdateProfile(ctx, userID, params)
	if err != nil {
		return user, fmt.Errorf("can't update user. Err: %w", err)
	}
	return user.Public(), nil
}
