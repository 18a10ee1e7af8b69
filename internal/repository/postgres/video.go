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

type VideoRepo struct {
	DB DBTX
}

const videoColumns = `id, created_at, updated_at, owner_id, title, description, video_file, thumbnail, duration, views, is_published`

const createVideo = `-- name: CreateVideo
INSERT INTO videos (id, owner_id, title, description, video_file, thumbnail, duration, is_published)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + videoColumns

func (r *VideoRepo) CreateVideo(ctx context.Context, params repository.CreateVideoParams) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, createVideo,
		uuid.New(),
		params.OwnerID,
		params.Title,
		params.Description,
		params.VideoFile,
		params.Thumbnail,
		params.Duration,
		params.IsPublished,
	)
	video, err := pgx.CollectOneRow(rows, rowToVideo)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return video, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		return video, apperrors.ErrUserNotFound
	default:
		return video, fmt.Errorf("db error: %w", err)
	}
}

const getVideoByID = `-- name: GetVideoByID
SELECT ` + videoColumns + ` FROM videos
WHERE id = $1
`

func (r *VideoRepo) GetVideoByID(ctx context.Context, id uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, getVideoByID, id)
	return collectVideo(rows)
}

const deleteVideo = `-- name: DeleteVideo owned by the user
DELETE FROM videos
WHERE id = $1 AND owner_id = $2
RETURNING ` + videoColumns

func (r *VideoRepo) DeleteVideo(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (models.Video, error) {
	rows, _ := r.DB.Query(ctx, deleteVideo, id, ownerID)
	return collectVideo(rows)
}

func collectVideo(rows pgx.Rows) (models.Video, error) {
	video, err := pgx.CollectOneRow(rows, rowToVideo)

	switch {
	case err == nil:
		return video, nil
	case errors.Is(err, pgx.ErrNoRows):
		return video, apperrors.ErrVideoNotFound
	default:
		return video, fmt.Errorf("db error: %w", err)
	}
}

func rowToVideo(row pgx.CollectableRow) (models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.OwnerID,
		&v.Title,
		&v.Description,
		&v.VideoFile,
		&v.Thumbnail,
		&v.Duration,
		&v.Views,
		&v.IsPublished,
	)
	return v, err
}
