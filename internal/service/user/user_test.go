package user

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/repository/postgres"
	"github.com/nkiryanov/vidtube/internal/testutil"
)

type uploadFunc func(ctx context.Context, folder string, asset models.Asset) (string, error)

func (f uploadFunc) Upload(ctx context.Context, folder string, asset models.Asset) (string, error) {
	return f(ctx, folder, asset)
}

func TestUser(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	okAssets := uploadFunc(func(_ context.Context, folder string, asset models.Asset) (string, error) {
		return "https://cdn.example.com/" + folder + "/" + asset.Filename, nil
	})

	// Helper function to create UserService within transaction with one user created
	inTx := func(t *testing.T, assets AssetStorage, fn func(s *UserService, storage repository.Storage, user models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
				Username:       "alice",
				Email:          "alice@x.com",
				FullName:       "Alice Liddell",
				Avatar:         "https://cdn.example.com/avatars/old.png",
				HashedPassword: "hashed-secret",
			})
			require.NoError(t, err)

			token := "refresh-token"
			require.NoError(t, storage.User().SetRefreshToken(t.Context(), user.ID, &token))

			fn(NewService(storage, assets), storage, user)
		})
	}

	// Profile changes must never touch credentials
	requireCredentialsKept := func(t *testing.T, storage repository.Storage, userID uuid.UUID) {
		stored, err := storage.User().GetUserByID(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, "hashed-secret", stored.HashedPassword)
		require.True(t, stored.HasRefreshToken("refresh-token"))
	}

	t.Run("GetUser", func(t *testing.T) {
		t.Run("get ok", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, _ repository.Storage, created models.User) {
				user, err := s.GetUser(t.Context(), created.ID)

				require.NoError(t, err)
				require.Equal(t, "alice", user.Username)
				require.Empty(t, user.HashedPassword, "password hash must not leave the service")
				require.Nil(t, user.RefreshToken, "refresh token must not leave the service")
			})
		})

		t.Run("not existed fail", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, _ repository.Storage, _ models.User) {
				_, err := s.GetUser(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})

	t.Run("UpdateAccountDetails", func(t *testing.T) {
		t.Run("not existed fail", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, _ repository.Storage, _ models.User) {
				_, err := s.UpdateAccountDetails(t.Context(), uuid.New(), "Bob", "bob@x.com")

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})

		t.Run("update ok", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, storage repository.Storage, created models.User) {
				user, err := s.UpdateAccountDetails(t.Context(), created.ID, " Alice L. ", "Alice@New.com")

				require.NoError(t, err)
				require.Equal(t, "Alice L.", user.FullName)
				require.Equal(t, "alice@new.com", user.Email)
				require.Empty(t, user.HashedPassword)
				requireCredentialsKept(t, storage, created.ID)
			})
		})

		t.Run("blank fields fail", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, _ repository.Storage, created models.User) {
				_, err := s.UpdateAccountDetails(t.Context(), created.ID, "  ", "alice@x.com")

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})
	})

	t.Run("UpdateAvatar", func(t *testing.T) {
		t.Run("update ok", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, storage repository.Storage, created models.User) {
				user, err := s.UpdateAvatar(t.Context(), created.ID, &models.Asset{Filename: "new.png", Body: strings.NewReader("png")})

				require.NoError(t, err)
				require.Equal(t, "https://cdn.example.com/avatars/new.png", user.Avatar)
				requireCredentialsKept(t, storage, created.ID)
			})
		})

		t.Run("upload fail", func(t *testing.T) {
			failing := uploadFunc(func(context.Context, string, models.Asset) (string, error) {
				return "", apperrors.ErrAssetUpload
			})

			inTx(t, failing, func(s *UserService, storage repository.Storage, created models.User) {
				_, err := s.UpdateAvatar(t.Context(), created.ID, &models.Asset{Filename: "new.png", Body: strings.NewReader("png")})

				require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)

				stored, err := storage.User().GetUserByID(t.Context(), created.ID)
				require.NoError(t, err)
				require.Equal(t, created.Avatar, stored.Avatar, "avatar must stay the same")
			})
		})

		t.Run("missing file fail", func(t *testing.T) {
			inTx(t, okAssets, func(s *UserService, _ repository.Storage, created models.User) {
				_, err := s.UpdateAvatar(t.Context(), created.ID, nil)

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})
	})

	t.Run("UpdateCoverImage", func(t *testing.T) {
		inTx(t, okAssets, func(s *UserService, storage repository.Storage, created models.User) {
			user, err := s.UpdateCoverImage(t.Context(), created.ID, &models.Asset{Filename: "cover.jpg", Body: strings.NewReader("jpg")})

			require.NoError(t, err)
			require.Equal(t, "https://cdn.example.com/covers/cover.jpg", user.CoverImage)
			require.Equal(t, created.Avatar, user.Avatar)
			requireCredentialsKept(t, storage, created.ID)
		})
	})
}
