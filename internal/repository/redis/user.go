package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

// Hash fields of user record
const (
	fieldID           = "id"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
	fieldUsername     = "username"
	fieldEmail        = "email"
	fieldFullName     = "full_name"
	fieldAvatar       = "avatar"
	fieldCoverImage   = "cover_image"
	fieldPassword     = "password_hash"
	fieldRefreshToken = "refresh_token" // absent if user has no session
)

// KEYS: user, username index, email index
// ARGV: user id, field value pairs
var createUserLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
return 1
`)

// KEYS: user
// ARGV: field value pairs
var setFieldsLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// KEYS: user
// ARGV: updated at
var clearRefreshLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HDEL", KEYS[1], "refresh_token")
redis.call("HSET", KEYS[1], "updated_at", ARGV[1])
return 1
`)

// KEYS: user
// ARGV: expected token, next token, updated at
var swapRefreshLua = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "refresh_token") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[2], "updated_at", ARGV[3])
return 1
`)

// KEYS: user, new email index
// ARGV: user id, email index prefix, field value pairs
var updateEmailLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local owner = redis.call("GET", KEYS[2])
if owner and owner ~= ARGV[1] then
  return 2
end
local old = redis.call("HGET", KEYS[1], "email")
if old then
  redis.call("DEL", ARGV[2] .. old)
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 3))
return 1
`)

const (
	statusMissed   = 0
	statusOK       = 1
	statusConflict = 2
)

// Users stored as hashes with separate keys to look up user id by username or email
// Every write is a single lua script, so it is atomic without explicit transactions
type UserRepo struct {
	DB     goredis.UniversalClient
	Prefix string
}

func userKey(prefix string, id uuid.UUID) string {
	return prefix + ":user:" + id.String()
}

func (r *UserRepo) userKey(id uuid.UUID) string {
	return userKey(r.Prefix, id)
}

func (r *UserRepo) usernameKey(username string) string {
	return r.Prefix + ":username:" + username
}

func (r *UserRepo) emailPrefix() string {
	return r.Prefix + ":email:"
}

func (r *UserRepo) emailKey(email string) string {
	return r.emailPrefix() + email
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	id := uuid.New()
	createdAt := now()

	status, err := createUserLua.Run(ctx, r.DB,
		[]string{r.userKey(id), r.usernameKey(params.Username), r.emailKey(params.Email)},
		id.String(),
		fieldID, id.String(),
		fieldCreatedAt, createdAt,
		fieldUpdatedAt, createdAt,
		fieldUsername, params.Username,
		fieldEmail, params.Email,
		fieldFullName, params.FullName,
		fieldAvatar, params.Avatar,
		fieldCoverImage, params.CoverImage,
		fieldPassword, params.HashedPassword,
	).Int()

	switch {
	case err != nil:
		return models.User{}, fmt.Errorf("redis error: %w", err)
	case status == statusMissed:
		return models.User{}, apperrors.ErrUserAlreadyExists
	default:
		return r.GetUserByID(ctx, id)
	}
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	fields, err := r.DB.HGetAll(ctx, r.userKey(id)).Result()
	switch {
	case err != nil:
		return models.User{}, fmt.Errorf("redis error: %w", err)
	case len(fields) == 0:
		return models.User{}, apperrors.ErrUserNotFound
	default:
		return fieldsToUser(fields)
	}
}

func (r *UserRepo) GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error) {
	var keys []string
	if username != "" {
		keys = append(keys, r.usernameKey(username))
	}
	if email != "" {
		keys = append(keys, r.emailKey(email))
	}

	for _, key := range keys {
		value, err := r.DB.Get(ctx, key).Result()
		switch {
		case errors.Is(err, goredis.Nil):
			continue
		case err != nil:
			return models.User{}, fmt.Errorf("redis error: %w", err)
		}

		id, err := uuid.Parse(value)
		if err != nil {
			return models.User{}, fmt.Errorf("corrupted index %s: %w", key, err)
		}
		return r.GetUserByID(ctx, id)
	}

	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	var status int
	var err error

	if token == nil {
		status, err = clearRefreshLua.Run(ctx, r.DB, []string{r.userKey(id)}, now()).Int()
	} else {
		status, err = setFieldsLua.Run(ctx, r.DB, []string{r.userKey(id)},
			fieldRefreshToken, *token,
			fieldUpdatedAt, now(),
		).Int()
	}

	return scriptResult(status, err, apperrors.ErrUserNotFound)
}

func (r *UserRepo) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected string, next string) error {
	status, err := swapRefreshLua.Run(ctx, r.DB, []string{r.userKey(id)}, expected, next, now()).Int()
	return scriptResult(status, err, apperrors.ErrRefreshTokenMismatch)
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	status, err := setFieldsLua.Run(ctx, r.DB, []string{r.userKey(id)},
		fieldPassword, hashedPassword,
		fieldUpdatedAt, now(),
	).Int()
	return scriptResult(status, err, apperrors.ErrUserNotFound)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, params repository.UpdateProfileParams) (models.User, error) {
	pairs := []any{fieldUpdatedAt, now()}
	appendIf := func(field string, value *string) {
		if value != nil {
			pairs = append(pairs, field, *value)
		}
	}
	appendIf(fieldFullName, params.FullName)
	appendIf(fieldEmail, params.Email)
	appendIf(fieldAvatar, params.Avatar)
	appendIf(fieldCoverImage, params.CoverImage)

	var status int
	var err error

	if params.Email == nil {
		status, err = setFieldsLua.Run(ctx, r.DB, []string{r.userKey(id)}, pairs...).Int()
	} else {
		args := append([]any{id.String(), r.emailPrefix()}, pairs...)
		status, err = updateEmailLua.Run(ctx, r.DB, []string{r.userKey(id), r.emailKey(*params.Email)}, args...).Int()
	}

	if err := scriptResult(status, err, apperrors.ErrUserNotFound); err != nil {
		return models.User{}, err
	}

	return r.GetUserByID(ctx, id)
}

func scriptResult(status int, err error, missed error) error {
	switch {
	case err != nil:
		return fmt.Errorf("redis error: %w", err)
	case status == statusMissed:
		return missed
	case status == statusConflict:
		return apperrors.ErrUserAlreadyExists
	default:
		return nil
	}
}

func fieldsToUser(fields map[string]string) (models.User, error) {
	var u models.User
	var err error

	if u.ID, err = uuid.Parse(fields[fieldID]); err != nil {
		return u, fmt.Errorf("corrupted user id: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return u, fmt.Errorf("corrupted user created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err != nil {
		return u, fmt.Errorf("corrupted user updated_at: %w", err)
	}

	u.Username = fields[fieldUsername]
	u.Email = fields[fieldEmail]
	u.FullName = fields[fieldFullName]
	u.Avatar = fields[fieldAvatar]
	u.CoverImage = fields[fieldCoverImage]
	u.HashedPassword = fields[fieldPassword]

	if token, ok := fields[fieldRefreshToken]; ok {
		u.RefreshToken = &token
	}

	return u, nil
}
