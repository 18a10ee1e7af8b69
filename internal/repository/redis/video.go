package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

// Hash fields of video record
const (
	fieldOwnerID     = "owner_id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldVideoFile   = "video_file"
	fieldThumbnail   = "thumbnail"
	fieldDuration    = "duration"
	fieldViews       = "views"
	fieldIsPublished = "is_published"
)

// KEYS: video, owner
// ARGV: field value pairs
var createVideoLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// KEYS: video
// ARGV: owner id
// Returns fields of deleted video, empty if nothing deleted
var deleteVideoLua = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "owner_id") ~= ARGV[1] then
  return {}
end
local fields = redis.call("HGETALL", KEYS[1])
redis.call("DEL", KEYS[1])
return fields
`)

// Videos stored as hashes keyed by video id
type VideoRepo struct {
	DB     goredis.UniversalClient
	Prefix string
}

func (r *VideoRepo) videoKey(id uuid.UUID) string {
	return r.Prefix + ":video:" + id.String()
}

func (r *VideoRepo) CreateVideo(ctx context.Context, params repository.CreateVideoParams) (models.Video, error) {
	id := uuid.New()
	createdAt := now()

	status, err := createVideoLua.Run(ctx, r.DB,
		[]string{r.videoKey(id), userKey(r.Prefix, params.OwnerID)},
		fieldID, id.String(),
		fieldCreatedAt, createdAt,
		fieldUpdatedAt, createdAt,
		fieldOwnerID, params.OwnerID.String(),
		fieldTitle, params.Title,
		fieldDescription, params.Description,
		fieldVideoFile, params.VideoFile,
		fieldThumbnail, params.Thumbnail,
		fieldDuration, strconv.FormatFloat(params.Duration, 'g', -1, 64),
		fieldViews, "0",
		fieldIsPublished, strconv.FormatBool(params.IsPublished),
	).Int()

	if err := scriptResult(status, err, apperrors.ErrUserNotFound); err != nil {
		return models.Video{}, err
	}

	return r.GetVideoByID(ctx, id)
}

func (r *VideoRepo) GetVideoByID(ctx context.Context, id uuid.UUID) (models.Video, error) {
	fields, err := r.DB.HGetAll(ctx, r.videoKey(id)).Result()
	switch {
	case err != nil:
		return models.Video{}, fmt.Errorf("redis error: %w", err)
	case len(fields) == 0:
		return models.Video{}, apperrors.ErrVideoNotFound
	default:
		return fieldsToVideo(fields)
	}
}

func (r *VideoRepo) DeleteVideo(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (models.Video, error) {
	pairs, err := deleteVideoLua.Run(ctx, r.DB, []string{r.videoKey(id)}, ownerID.String()).StringSlice()
	switch {
	case err != nil:
		return models.Video{}, fmt.Errorf("redis error: %w", err)
	case len(pairs) == 0:
		return models.Video{}, apperrors.ErrVideoNotFound
	}

	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return fieldsToVideo(fields)
}

func fieldsToVideo(fields map[string]string) (models.Video, error) {
	var v models.Video
	var err error

	if v.ID, err = uuid.Parse(fields[fieldID]); err != nil {
		return v, fmt.Errorf("corrupted video id: %w", err)
	}
	if v.OwnerID, err = uuid.Parse(fields[fieldOwnerID]); err != nil {
		return v, fmt.Errorf("corrupted video owner_id: %w", err)
	}
	if v.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return v, fmt.Errorf("corrupted video created_at: %w", err)
	}
	if v.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err != nil {
		return v, fmt.Errorf("corrupted video updated_at: %w", err)
	}
	if v.Duration, err = strconv.ParseFloat(fields[fieldDuration], 64); err != nil {
		return v, fmt.Errorf("corrupted video duration: %w", err)
	}
	if v.Views, err = strconv.ParseInt(fields[fieldViews], 10, 64); err != nil {
		return v, fmt.Errorf("corrupted video views: %w", err)
	}
	if v.IsPublished, err = strconv.ParseBool(fields[fieldIsPublished]); err != nil {
		return v, fmt.Errorf("corrupted video is_published: %w", err)
	}

	v.Title = fields[fieldTitle]
	v.Description = fields[fieldDescription]
	v.VideoFile = fields[fieldVideoFile]
	v.Thumbnail = fields[fieldThumbnail]

	return v, nil
}
