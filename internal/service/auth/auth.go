package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type TokenManager interface {
	IssuePair(user models.User) (models.TokenPair, error)
	Verify(token string, class tokenmanager.Class) (tokenmanager.Claims, error)

	// Lifetime of issued tokens, cookies live the same
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Storage for user provided files, returns public URL of the stored file
type AssetStorage interface {
	Upload(ctx context.Context, folder string, asset models.Asset) (string, error)
}

type Config struct {
	// Hasher to use during registration, login and password change
	// If not set BcryptHasher is used
	Hasher PasswordHasher

	// Clear stored refresh token when user changes password
	RevokeOnPasswordChange bool

	// Cookie settings of issued tokens
	Cookies CookieConfig
}

// Auth service: owns user sessions
// Every user has at most one refresh token and it is rotated on every use
type Service struct {
	hasher       PasswordHasher
	tokenManager TokenManager
	storage      repository.Storage
	assets       AssetStorage
	logger       logger.Logger

	revokeOnPasswordChange bool
	cookies                CookieConfig
}

func NewService(cfg Config, tokenManager TokenManager, storage repository.Storage, assets AssetStorage, l logger.Logger) (*Service, error) {
	if tokenManager == nil || storage == nil || assets == nil {
		return nil, errors.New("token manager, storage and assets must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		hasher:                 hasher,
		tokenManager:           tokenManager,
		storage:                storage,
		assets:                 assets,
		logger:                 l,
		revokeOnPasswordChange: cfg.RevokeOnPasswordChange,
		cookies:                cfg.Cookies.withDefaults(),
	}, nil
}

type RegisterParams struct {
	Username string
	Email    string
	FullName string
	Password string

	// Avatar is required, cover image is optional
	Avatar     *models.Asset
	CoverImage *models.Asset
}

// Register user and upload its avatar and cover image
// Returned user has no password hash nor refresh token
func (s *Service) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	var user models.User

	username := normalize(params.Username)
	email := normalize(params.Email)
	fullName := strings.TrimSpace(params.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(params.Password) == "" {
		return user, apperrors.InvalidInput("all fields are required")
	}
	if params.Avatar == nil {
		return user, apperrors.InvalidInput("avatar file is required")
	}

	// Check before upload to not store files of users that will never be created
	_, err := s.storage.User().GetUserByIdentity(ctx, username, email)
	switch {
	case err == nil:
		return user, apperrors.ErrUserAlreadyExists
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, fmt.Errorf("can't check user existence. Err: %w", err)
	}

	avatar, err := s.assets.Upload(ctx, assets.FolderAvatars, *params.Avatar)
	if err != nil {
		return user, fmt.Errorf("avatar upload: %w", err)
	}

	var cover string
	if params.CoverImage != nil {
		cover, err = s.assets.Upload(ctx, assets.FolderCovers, *params.CoverImage)
		if err != nil {
			return user, fmt.Errorf("cover image upload: %w", err)
		}
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		Avatar:         avatar,
		CoverImage:     cover,
		HashedPassword: hash,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user.Public(), nil
}

type LoginParams struct {
	// At least one of username or email is required
	Username string
	Email    string
	Password string
}

// Login user and start new session
// Refresh token of the previous session (if any) stops working
func (s *Service) Login(ctx context.Context, params LoginParams) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	username := normalize(params.Username)
	email := normalize(params.Email)

	if username == "" && email == "" {
		return models.User{}, pair, apperrors.InvalidInput("username or email is required")
	}
	if params.Password == "" {
		return models.User{}, pair, apperrors.InvalidInput("password is required")
	}

	user, err := s.storage.User().GetUserByIdentity(ctx, username, email)
	if err != nil {
		return models.User{}, pair, err
	}

	if err := s.hasher.Compare(user.HashedPassword, params.Password); err != nil {
		s.logger.Debug("login rejected", "user_id", user.ID, "reason", err)
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.tokenManager.IssuePair(user)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	err = s.storage.User().SetRefreshToken(ctx, user.ID, &pair.Refresh.Value)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't save refresh token. Err: %w", err)
	}

	return user.Public(), pair, nil
}

// Exchange refresh token for new token pair
// Presented refresh token becomes invalid, even if it is not expired yet
func (s *Service) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	if refresh == "" {
		return pair, fmt.Errorf("refresh token is missing: %w", apperrors.ErrUnauthorized)
	}

	claims, err := s.tokenManager.Verify(refresh, tokenmanager.ClassRefresh)
	if err != nil {
		return pair, err
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return pair, fmt.Errorf("user %s: %w", claims.UserID, apperrors.ErrRefreshTokenMismatch)
	case err != nil:
		return pair, fmt.Errorf("can't get user. Err: %w", err)
	case !user.HasRefreshToken(refresh):
		return pair, apperrors.ErrRefreshTokenMismatch
	}

	pair, err = s.tokenManager.IssuePair(user)
	if err != nil {
		return pair, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	// Concurrent refresh or login may have replaced the token since it was read
	err = s.storage.User().SwapRefreshToken(ctx, user.ID, refresh, pair.Refresh.Value)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't rotate refresh token. Err: %w", err)
	}

	return pair, nil
}

// Close user session. Safe to call many times
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.storage.User().SetRefreshToken(ctx, userID, nil)
	switch {
	case err == nil, errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("can't clear refresh token. Err: %w", err)
	}
}

// Replace user password if the old one matches
// Current session is kept unless RevokeOnPasswordChange set
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperrors.InvalidInput("old and new passwords are required")
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password. Err: %w", err)
	}

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		if err := storage.User().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		if s.revokeOnPasswordChange {
			return storage.User().SetRefreshToken(ctx, userID, nil)
		}
		return nil
	})
}

// Resolve user the access token was issued for
// Returned user has no password hash nor refresh token
func (s *Service) Authenticate(ctx context.Context, access string) (models.User, error) {
	claims, err := s.tokenManager.Verify(access, tokenmanager.ClassAccess)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, fmt.Errorf("user %s: %w", claims.UserID, apperrors.ErrTokenSubjectNotFound)
	case err != nil:
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	return user.Public(), nil
}

// Usernames and emails are stored trimmed and lower cased
func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
