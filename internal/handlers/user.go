package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
)

// Profile is read from the store, claims of access token may be outdated
func handleCurrentUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		fresh, err := userService.GetUser(r.Context(), user.ID)
		if err != nil {
			renderError(w, l, "current user fetch failed", err)
			return
		}

		render.JSON(w, userEnvelope{Message: "Current user fetched", User: newUserResponse(fresh)})
	})
}

func handleUpdateAccount(userService userService, l logger.Logger) http.Handler {
	type request struct {
		FullName string `json:"fullName" validate:"notblank"`
		Email    string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := userService.UpdateAccountDetails(r.Context(), user.ID, data.FullName, data.Email)
		if err != nil {
			renderError(w, l, "account update failed", err)
			return
		}

		render.JSON(w, userEnvelope{Message: "Account details updated", User: newUserResponse(updated)})
	})
}

type updateAssetFunc func(ctx context.Context, userID uuid.UUID, asset *models.Asset) (models.User, error)

// Replace one of user assets with file from multipart form field
func handleUpdateAsset(field string, update updateAssetFunc, message string, l logger.Logger) http.Handler {
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

		asset, closeAsset, err := formAsset(r, field)
		if err != nil {
			render.ServiceError(w, "Invalid file", http.StatusBadRequest)
			return
		}
		defer closeAsset()

		updated, err := update(r.Context(), user.ID, asset)
		if err != nil {
			renderError(w, l, field+" update failed", err)
			return
		}

		render.JSON(w, userEnvelope{Message: message, User: newUserResponse(updated)})
	})
}

func handleUpdateAvatar(userService userService, l logger.Logger) http.Handler {
	return handleUpdateAsset("avatar", userService.UpdateAvatar, "Avatar updated", l)
}

func handleUpdateCoverImage(userService userService, l logger.Logger) http.Handler {
	return handleUpdateAsset("coverImage", userService.UpdateCoverImage, "Cover image updated", l)
}
