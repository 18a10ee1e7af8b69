package video

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/assets"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/repository"
)

type AssetStorage interface {
	Upload(ctx context.Context, folder string, asset models.Asset) (string, error)
}

type VideoService struct {
	storage repository.Storage
	assets  AssetStorage
	logger  logger.Logger
}

func NewService(storage repository.Storage, assets AssetStorage, l logger.Logger) *VideoService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &VideoService{
		storage: storage,
		assets:  assets,
		logger:  l,
	}
}

type UploadParams struct {
	Title       string
	Description string

	// Seconds, reported by client. Zero if unknown
	Duration    float64
	IsPublished bool

	// Both files are required
	VideoFile *models.Asset
	Thumbnail *models.Asset
}

// Upload video with its thumbnail and save it as owned by the user
func (s *VideoService) Upload(ctx context.Context, ownerID uuid.UUID, params UploadParams) (models.Video, error) {
	title := strings.TrimSpace(params.Title)
	description := strings.TrimSpace(params.Description)

	switch {
	case title == "":
		return models.Video{}, apperrors.InvalidInput("title is required")
	case description == "":
		return models.Video{}, apperrors.InvalidInput("description is required")
	case params.VideoFile == nil:
		return models.Video{}, apperrors.InvalidInput("video file is missing")
	case params.Thumbnail == nil:
		return models.Video{}, apperrors.InvalidInput("thumbnail is missing")
	case !hasMediaType(params.VideoFile, "video"):
		return models.Video{}, apperrors.InvalidInput("video file must be a video")
	case !hasMediaType(params.Thumbnail, "image"):
		return models.Video{}, apperrors.InvalidInput("thumbnail must be an image")
	case params.Duration < 0 || math.IsNaN(params.Duration) || math.IsInf(params.Duration, 0):
		return models.Video{}, apperrors.InvalidInput("duration must be a non-negative number of seconds")
	}

	videoURL, err := s.assets.Upload(ctx, assets.FolderVideos, *params.VideoFile)
	if err != nil {
		return models.Video{}, fmt.Errorf("video upload: %w", err)
	}

	thumbnailURL, err := s.assets.Upload(ctx, assets.FolderThumbnails, *params.Thumbnail)
	if err != nil {
		return models.Video{}, fmt.Errorf("thumbnail upload: %w", err)
	}

	video, err := s.storage.Video().CreateVideo(ctx, repository.CreateVideoParams{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		VideoFile:   videoURL,
		Thumbnail:   thumbnailURL,
		Duration:    params.Duration,
		IsPublished: params.IsPublished,
	})
	if err != nil {
		return video, fmt.Errorf("can't create video. Err: %w", err)
	}

	s.logger.Info("video uploaded", "video_id", video.ID, "owner_id", ownerID)
	return video, nil
}

func (s *VideoService) GetVideo(ctx context.Context, videoID uuid.UUID) (models.Video, error) {
	return s.storage.Video().GetVideoByID(ctx, videoID)
}

// Delete video of the user. Videos of other users are reported as not found
func (s *VideoService) DeleteVideo(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error) {
	video, err := s.storage.Video().DeleteVideo(ctx, videoID, ownerID)
	if err != nil {
		return video, err
	}

	s.logger.Info("video deleted", "video_id", video.ID, "owner_id", ownerID)
	return video, nil
}

// Content type like "video/mp4" belongs to "video" media type
func hasMediaType(asset *models.Asset, mediaType string) bool {
	top, _, ok := strings.Cut(strings.ToLower(asset.ContentType), "/")
	return ok && top == mediaType
}
