package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
	"github.com/nkiryanov/vidtube/internal/repository/redis"
	"github.com/nkiryanov/vidtube/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/vidtube/internal/testutil"
)

// Allow to use a function as asset storage
type uploadFunc func(ctx context.Context, folder string, asset models.Asset) (string, error)

func (f uploadFunc) Upload(ctx context.Context, folder string, asset models.Asset) (string, error) {
	return f(ctx, folder, asset)
}

var fakeAssets = uploadFunc(func(_ context.Context, folder string, asset models.Asset) (string, error) {
	return "https://cdn.example.com/" + folder + "/" + asset.Filename, nil
})

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func Test_Auth(t *testing.T) {
	t.Parallel()

	type env struct {
		s       *Service
		storage repository.Storage
		clock   *clock
	}

	// Every test gets its own empty redis
	withService := func(t *testing.T, cfg Config, assets AssetStorage, fn func(e env)) {
		rdb := testutil.StartRedis(t)
		storage := redis.NewStorage(rdb.Client, "test")

		c := &clock{now: time.Now()}
		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			Now:           c.Now,
		})
		require.NoError(t, err, "token manager should be created without errors")

		if cfg.Hasher == nil {
			cfg.Hasher = BcryptHasher{Cost: bcrypt.MinCost}
		}

		s, err := NewService(cfg, tokenManager, storage, assets, nil)
		require.NoError(t, err, "auth service could't be started")

		fn(env{s: s, storage: storage, clock: c})
	}

	alice := func() RegisterParams {
		return RegisterParams{
			Username: "alice",
			Email:    "alice@x.com",
			FullName: "Alice Liddell",
			Password: "secret123",
			Avatar:   &models.Asset{Filename: "alice.png", Body: strings.NewReader("png")},
		}
	}

	register := func(t *testing.T, s *Service) models.User {
		user, err := s.Register(t.Context(), alice())
		require.NoError(t, err)
		return user
	}

	login := func(t *testing.T, s *Service) models.TokenPair {
		_, pair, err := s.Login(t.Context(), LoginParams{Username: "alice", Password: "secret123"})
		require.NoError(t, err)
		return pair
	}

	storedUser := func(t *testing.T, e env, id uuid.UUID) models.User {
		user, err := e.storage.User().GetUserByID(t.Context(), id)
		require.NoError(t, err)
		return user
	}

	t.Run("new auth service", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil, nil, nil)
		require.Error(t, err, "dependencies are required")

		withService(t, Config{Hasher: DefaultHasher}, fakeAssets, func(e env) {
			require.Equal(t, DefaultHasher, e.s.hasher)
			require.Equal(t, defaultAccessCookieName, e.s.cookies.AccessName)
			require.Equal(t, defaultRefreshCookieName, e.s.cookies.RefreshName)
			require.False(t, e.s.revokeOnPasswordChange)
		})
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				params := alice()
				params.Username = "  Alice "
				params.Email = "Alice@X.com"
				params.CoverImage = &models.Asset{Filename: "cover.jpg", Body: strings.NewReader("jpg")}

				user, err := e.s.Register(t.Context(), params)

				require.NoError(t, err, "registering new user should be ok")
				assert.Equal(t, "alice", user.Username, "username has to be trimmed and lower cased")
				assert.Equal(t, "alice@x.com", user.Email, "email has to be lower cased")
				assert.Equal(t, "https://cdn.example.com/avatars/alice.png", user.Avatar)
				assert.Equal(t, "https://cdn.example.com/covers/cover.jpg", user.CoverImage)
				assert.Empty(t, user.HashedPassword, "returned user must not expose password hash")
				assert.Nil(t, user.RefreshToken)

				stored := storedUser(t, e, user.ID)
				assert.NotEmpty(t, stored.HashedPassword)
				assert.NotEqual(t, "secret123", stored.HashedPassword, "password must be stored hashed")
				assert.NoError(t, e.s.hasher.Compare(stored.HashedPassword, "secret123"))
			})
		})

		t.Run("fail if user exists", func(t *testing.T) {
			tests := []struct {
				name     string
				username string
				email    string
			}{
				{"same username", "ALICE", "other@x.com"},
				{"same email", "other", "alice@x.com"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					uploads := 0
					counting := uploadFunc(func(ctx context.Context, folder string, asset models.Asset) (string, error) {
						uploads++
						return fakeAssets(ctx, folder, asset)
					})

					withService(t, Config{}, counting, func(e env) {
						register(t, e.s)

						params := alice()
						params.Username = tt.username
						params.Email = tt.email
						_, err := e.s.Register(t.Context(), params)

						require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
						require.ErrorIs(t, err, apperrors.ErrConflict)
						require.Equal(t, 1, uploads, "avatar of duplicate user must not be uploaded")

						_, err = e.storage.User().GetUserByIdentity(t.Context(), "other", "other@x.com")
						require.ErrorIs(t, err, apperrors.ErrUserNotFound, "no duplicate record created")
					})
				})
			}
		})

		t.Run("fail if fields missing", func(t *testing.T) {
			tests := []struct {
				name   string
				modify func(p *RegisterParams)
			}{
				{"blank username", func(p *RegisterParams) { p.Username = "   " }},
				{"no email", func(p *RegisterParams) { p.Email = "" }},
				{"blank full name", func(p *RegisterParams) { p.FullName = " " }},
				{"no password", func(p *RegisterParams) { p.Password = "" }},
				{"no avatar", func(p *RegisterParams) { p.Avatar = nil }},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					withService(t, Config{}, fakeAssets, func(e env) {
						params := alice()
						tt.modify(&params)

						_, err := e.s.Register(t.Context(), params)

						require.ErrorIs(t, err, apperrors.ErrInvalidInput)
					})
				})
			}
		})

		t.Run("fail if upload fails", func(t *testing.T) {
			failing := uploadFunc(func(context.Context, string, models.Asset) (string, error) {
				return "", apperrors.ErrAssetUpload
			})

			withService(t, Config{}, failing, func(e env) {
				_, err := e.s.Register(t.Context(), alice())

				require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)

				_, err = e.storage.User().GetUserByIdentity(t.Context(), "alice", "")
				require.ErrorIs(t, err, apperrors.ErrUserNotFound, "user must not be created without avatar")
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing user ok", func(t *testing.T) {
			tests := []struct {
				name   string
				params LoginParams
			}{
				{"by username", LoginParams{Username: "alice", Password: "secret123"}},
				{"by email", LoginParams{Email: "ALICE@x.com", Password: "secret123"}},
				{"by both", LoginParams{Username: "alice", Email: "alice@x.com", Password: "secret123"}},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					withService(t, Config{}, fakeAssets, func(e env) {
						registered := register(t, e.s)

						user, pair, err := e.s.Login(t.Context(), tt.params)

						require.NoError(t, err)
						require.Equal(t, registered.ID, user.ID)
						require.Empty(t, user.HashedPassword)
						require.Nil(t, user.RefreshToken)
						require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
						require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
						require.NotEqual(t, pair.Access.Value, pair.Refresh.Value)

						stored := storedUser(t, e, user.ID)
						require.True(t, stored.HasRefreshToken(pair.Refresh.Value), "refresh token has to be stored")

						authenticated, err := e.s.Authenticate(t.Context(), pair.Access.Value)
						require.NoError(t, err)
						require.Equal(t, user.ID, authenticated.ID)
					})
				})
			}
		})

		tests := []struct {
			name        string
			params      LoginParams
			expectedErr error
		}{
			{
				name:        "login fail if wrong password",
				params:      LoginParams{Username: "alice", Password: "wrong"},
				expectedErr: apperrors.ErrUnauthorized,
			},
			{
				name:        "login fail if user not exists",
				params:      LoginParams{Username: "bob", Password: "secret123"},
				expectedErr: apperrors.ErrNotFound,
			},
			{
				name:        "login fail without identity",
				params:      LoginParams{Password: "secret123"},
				expectedErr: apperrors.ErrInvalidInput,
			},
			{
				name:        "login fail without password",
				params:      LoginParams{Username: "alice"},
				expectedErr: apperrors.ErrInvalidInput,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withService(t, Config{}, fakeAssets, func(e env) {
					register(t, e.s)

					_, pair, err := e.s.Login(t.Context(), tt.params)

					require.ErrorIs(t, err, tt.expectedErr)
					require.Empty(t, pair.Access.Value)
					require.Empty(t, pair.Refresh.Value)
				})
			})
		}

		t.Run("second login ends first session", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				register(t, e.s)
				first := login(t, e.s)
				second := login(t, e.s)

				_, err := e.s.Refresh(t.Context(), first.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)

				_, err = e.s.Refresh(t.Context(), second.Refresh.Value)
				require.NoError(t, err)
			})
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("rotate ok", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)
				rt1 := login(t, e.s)

				rt2, err := e.s.Refresh(t.Context(), rt1.Refresh.Value)

				require.NoError(t, err)
				require.NotEqual(t, rt1.Access.Value, rt2.Access.Value, "new access token should be different")
				require.NotEqual(t, rt1.Refresh.Value, rt2.Refresh.Value, "new refresh token should be different")
				require.True(t, storedUser(t, e, user.ID).HasRefreshToken(rt2.Refresh.Value))

				_, err = e.s.Refresh(t.Context(), rt1.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized, "old refresh token must not work after rotation")

				_, err = e.s.Refresh(t.Context(), rt2.Refresh.Value)
				require.NoError(t, err, "rotated refresh token has to work")
			})
		})

		t.Run("fail if expired", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				register(t, e.s)
				pair := login(t, e.s)

				e.clock.now = e.clock.now.Add(25 * time.Hour)
				_, err := e.s.Refresh(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenExpired)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("fail with access token", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				register(t, e.s)
				pair := login(t, e.s)

				_, err := e.s.Refresh(t.Context(), pair.Access.Value)

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("fail if empty", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				_, err := e.s.Refresh(t.Context(), "")
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("fail if user gone", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				tm, err := tokenmanager.New(tokenmanager.Config{AccessSecret: "test-access-secret", RefreshSecret: "test-refresh-secret"})
				require.NoError(t, err)
				pair, err := tm.IssuePair(models.User{ID: uuid.New()})
				require.NoError(t, err)

				_, err = e.s.Refresh(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
				require.NotErrorIs(t, err, apperrors.ErrNotFound)
			})
		})

		t.Run("fail after logout", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)
				pair := login(t, e.s)
				require.NoError(t, e.s.Logout(t.Context(), user.ID))

				_, err := e.s.Refresh(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch)
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("idempotent", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)
				login(t, e.s)

				require.NoError(t, e.s.Logout(t.Context(), user.ID))
				require.NoError(t, e.s.Logout(t.Context(), user.ID))

				require.Nil(t, storedUser(t, e, user.ID).RefreshToken)
			})
		})

		t.Run("unknown user ok", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				require.NoError(t, e.s.Logout(t.Context(), uuid.New()))
			})
		})
	})

	t.Run("ChangePassword", func(t *testing.T) {
		t.Run("change ok and keep session", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)
				pair := login(t, e.s)

				err := e.s.ChangePassword(t.Context(), user.ID, "secret123", "newsecret456")
				require.NoError(t, err)

				_, _, err = e.s.Login(t.Context(), LoginParams{Username: "alice", Password: "secret123"})
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "old password must not work")

				_, err = e.s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "session is kept by default")

				_, _, err = e.s.Login(t.Context(), LoginParams{Username: "alice", Password: "newsecret456"})
				require.NoError(t, err)
			})
		})

		t.Run("change ok and revoke session", func(t *testing.T) {
			withService(t, Config{RevokeOnPasswordChange: true}, fakeAssets, func(e env) {
				user := register(t, e.s)
				pair := login(t, e.s)

				err := e.s.ChangePassword(t.Context(), user.ID, "secret123", "newsecret456")
				require.NoError(t, err)

				require.Nil(t, storedUser(t, e, user.ID).RefreshToken)
				_, err = e.s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("fail if old password wrong", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)
				before := storedUser(t, e, user.ID).HashedPassword

				err := e.s.ChangePassword(t.Context(), user.ID, "wrong", "newsecret456")

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
				require.Equal(t, before, storedUser(t, e, user.ID).HashedPassword)
			})
		})

		t.Run("fail if new password blank", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				user := register(t, e.s)

				err := e.s.ChangePassword(t.Context(), user.ID, "secret123", "   ")

				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("fail if expired", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				register(t, e.s)
				pair := login(t, e.s)

				e.clock.now = e.clock.now.Add(15 * time.Minute)
				_, err := e.s.Authenticate(t.Context(), pair.Access.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenExpired)
			})
		})

		t.Run("fail if user gone", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				tm, err := tokenmanager.New(tokenmanager.Config{AccessSecret: "test-access-secret", RefreshSecret: "test-refresh-secret"})
				require.NoError(t, err)
				pair, err := tm.IssuePair(models.User{ID: uuid.New()})
				require.NoError(t, err)

				_, err = e.s.Authenticate(t.Context(), pair.Access.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenSubjectNotFound)
				require.Equal(t, apperrors.ErrUnauthorized, apperrors.Kind(err))
			})
		})

		t.Run("fail with refresh token", func(t *testing.T) {
			withService(t, Config{}, fakeAssets, func(e env) {
				register(t, e.s)
				pair := login(t, e.s)

				_, err := e.s.Authenticate(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
			})
		})
	})

	t.Run("token issue failure is internal", func(t *testing.T) {
		withService(t, Config{}, fakeAssets, func(e env) {
			register(t, e.s)
			e.s.tokenManager = failingTokens{}

			_, _, err := e.s.Login(t.Context(), LoginParams{Username: "alice", Password: "secret123"})

			require.Error(t, err)
			require.Equal(t, apperrors.ErrInternal, apperrors.Kind(err))
		})
	})
}

type failingTokens struct{}

func (failingTokens) IssuePair(models.User) (models.TokenPair, error) {
	return models.TokenPair{}, errors.New("entropy exhausted")
}

func (failingTokens) Verify(string, tokenmanager.Class) (tokenmanager.Claims, error) {
	return tokenmanager.Claims{}, apperrors.ErrTokenInvalid
}

func (failingTokens) AccessTTL() time.Duration  { return time.Minute }
func (failingTokens) RefreshTTL() time.Duration { return time.Hour }
