package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, updated_at, username, email, full_name, avatar, cover_image, password_hash, refresh_token`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		uuid.New(),
		params.Username,
		params.Email,
		params.FullName,
		params.Avatar,
		params.CoverImage,
		params.HashedPassword,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case isUniqueViolation(err):
		return user, apperrors.ErrUserAlreadyExists
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByIdentity = `-- name: GetUserByIdentity
SELECT ` + userColumns + ` FROM users
WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
ORDER BY created_at
LIMIT 1
`

func (r *UserRepo) GetUserByIdentity(ctx context.Context, username string, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByIdentity, username, email)
	return collectUser(rows)
}

const setRefreshToken = `-- name: SetRefreshToken
UPDATE users
SET refresh_token = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	tag, err := r.DB.Exec(ctx, setRefreshToken, id, token)
	return affectedOne(tag, err, apperrors.ErrUserNotFound)
}

const swapRefreshToken = `-- name: SwapRefreshToken only if it was not changed concurrently
UPDATE users
SET refresh_token = $3, updated_at = now()
WHERE id = $1 AND refresh_token = $2
`

func (r *UserRepo) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected string, next string) error {
	tag, err := r.DB.Exec(ctx, swapRefreshToken, id, expected, next)
	return affectedOne(tag, err, apperrors.ErrRefreshTokenMismatch)
}

const updatePasswordHash = `-- name: UpdatePasswordHash
UPDATE users
SET password_hash = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePasswordHash, id, hashedPassword)
	return affectedOne(tag, err, apperrors.ErrUserNotFound)
}

const updateProfile = `-- name: UpdateProfile
UPDATE users
SET full_name   = COALESCE($2, full_name),
    email       = COALESCE($3, email),
    avatar      = COALESCE($4, avatar),
    cover_image = COALESCE($5, cover_image),
    updated_at  = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, params repository.UpdateProfileParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateProfile, id, params.FullName, params.Email, params.Avatar, params.CoverImage)
	user, err := collectUser(rows)
	if isUniqueViolation(err) {
		return user, apperrors.ErrUserAlreadyExists
	}

	return user, err
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func affectedOne(tag pgconn.CommandTag, err error, notAffected error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return notAffected
	default:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Avatar,
		&u.CoverImage,
		&u.HashedPassword,
		&u.RefreshToken,
	)
	return u, err
}
