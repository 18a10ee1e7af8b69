package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/video"
)

type videoResponse struct {
	ID          uuid.UUID `json:"id"`
	Owner       uuid.UUID `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newVideoResponse(v models.Video) videoResponse {
	return videoResponse{
		ID:          v.ID,
		Owner:       v.OwnerID,
		Title:       v.Title,
		Description: v.Description,
		VideoFile:   v.VideoFile,
		Thumbnail:   v.Thumbnail,
		Duration:    v.Duration,
		Views:       v.Views,
		IsPublished: v.IsPublished,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type videoEnvelope struct {
	Message string        `json:"message"`
	Video   videoResponse `json:"video"`
}

func handleUploadVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			render.ServiceError(w, "Multipart form expected", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll() // nolint:errcheck

		params := video.UploadParams{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
		}

		var err error
		if params.Duration, err = optionalFloat(r.FormValue("duration")); err != nil {
			render.AppError(w, apperrors.InvalidInput("duration must be a number of seconds"))
			return
		}
		if params.IsPublished, err = optionalBool(r.FormValue("isPublished")); err != nil {
			render.AppError(w, apperrors.InvalidInput("isPublished must be true or false"))
			return
		}

		videoFile, closeVideo, err := formAsset(r, "videoFile")
		if err != nil {
			render.ServiceError(w, "Invalid video file", http.StatusBadRequest)
			return
		}
		defer closeVideo()
		params.VideoFile = videoFile

		thumbnail, closeThumbnail, err := formAsset(r, "thumbnail")
		if err != nil {
			render.ServiceError(w, "Invalid thumbnail file", http.StatusBadRequest)
			return
		}
		defer closeThumbnail()
		params.Thumbnail = thumbnail

		uploaded, err := videoService.Upload(r.Context(), user.ID, params)
		if err != nil {
			renderError(w, l, "video upload failed", err)
			return
		}

		render.JSONWithStatus(w, videoEnvelope{
			Message: "Video uploaded successfully",
			Video:   newVideoResponse(uploaded),
		}, http.StatusCreated)
	})
}

func handleGetVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		videoID, ok := videoIDFromPath(w, r)
		if !ok {
			return
		}

		found, err := videoService.GetVideo(r.Context(), videoID)
		if err != nil {
			renderError(w, l, "video fetch failed", err)
			return
		}

		render.JSON(w, videoEnvelope{Message: "Video fetched successfully", Video: newVideoResponse(found)})
	})
}

func handleDeleteVideo(videoService videoService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		videoID, ok := videoIDFromPath(w, r)
		if !ok {
			return
		}

		deleted, err := videoService.DeleteVideo(r.Context(), user.ID, videoID)
		if err != nil {
			renderError(w, l, "video delete failed", err)
			return
		}

		render.JSON(w, videoEnvelope{Message: "Video deleted successfully", Video: newVideoResponse(deleted)})
	})
}

func videoIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("videoId"))
	if err != nil {
		render.AppError(w, apperrors.InvalidInput("invalid video id"))
		return uuid.Nil, false
	}
	return id, true
}

func optionalFloat(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

func optionalBool(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}
