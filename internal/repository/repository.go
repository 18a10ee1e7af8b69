package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	FullName       string
	Avatar         string
	CoverImage     string
	HashedPassword string
}

// Profile fields to update. Nil fields are left untouched
type UpdateProfileParams struct {
	FullName   *string
	Email      *string
	Avatar     *string
	CoverImage *string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id, or by username or email (empty values are not matched)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error)

	// Overwrite stored refresh token, nil clears it
	// If user not found must return apperrors.ErrUserNotFound
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error

	// Replace stored refresh token only if it is equal to expected one
	// Must be atomic. If token differs or user not found must return apperrors.ErrRefreshTokenMismatch
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, expected string, next string) error

	// If user not found must return apperrors.ErrUserNotFound
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// If user not found must return apperrors.ErrUserNotFound
	// If email taken by other user must return apperrors.ErrUserAlreadyExists
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (models.User, error)
}

type CreateVideoParams struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	VideoFile   string
	Thumbnail   string
	Duration    float64
	IsPublished bool
}

type VideoRepo interface {
	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)

	// If video not found must return apperrors.ErrVideoNotFound
	GetVideoByID(ctx context.Context, videoID uuid.UUID) (models.Video, error)

	// Delete video owned by the user and return deleted record
	// If video not found or owned by other user must return apperrors.ErrVideoNotFound
	DeleteVideo(ctx context.Context, videoID uuid.UUID, ownerID uuid.UUID) (models.Video, error)
}

type Storage interface {
	User() UserRepo
	Video() VideoRepo

	// Run fn with storage bound to single transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
