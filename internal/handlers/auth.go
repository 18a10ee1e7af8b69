package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/auth"
)

// Multipart forms above the limit are stored in temporary files
const maxFormMemory = 10 << 20

func handleRegister(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			render.ServiceError(w, "Multipart form expected", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll() // nolint:errcheck

		avatar, closeAvatar, err := formAsset(r, "avatar")
		if err != nil {
			render.ServiceError(w, "Invalid avatar file", http.StatusBadRequest)
			return
		}
		defer closeAvatar()

		cover, closeCover, err := formAsset(r, "coverImage")
		if err != nil {
			render.ServiceError(w, "Invalid cover image file", http.StatusBadRequest)
			return
		}
		defer closeCover()

		user, err := authService.Register(r.Context(), auth.RegisterParams{
			Username:   r.FormValue("username"),
			Email:      r.FormValue("email"),
			FullName:   r.FormValue("fullName"),
			Password:   r.FormValue("password"),
			Avatar:     avatar,
			CoverImage: cover,
		})
		if err != nil {
			renderError(w, l, "registration failed", err)
			return
		}

		render.JSONWithStatus(w, userEnvelope{
			Message: "User registered successfully",
			User:    newUserResponse(user),
		}, http.StatusCreated)
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required_without=Email"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Login(r.Context(), auth.LoginParams{
			Username: data.Username,
			Email:    data.Email,
			Password: data.Password,
		})
		if err != nil {
			renderError(w, l, "login failed", err)
			return
		}

		authService.SetTokens(w, pair)
		userResp := newUserResponse(user)
		render.JSON(w, tokensEnvelope{
			Message:      "User logged in successfully",
			User:         &userResp,
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Cookie first, clients without cookies send the token in body
		refresh := authService.RefreshToken(r)
		if refresh == "" {
			var data request
			err := json.NewDecoder(r.Body).Decode(&data)
			if err != nil && !errors.Is(err, io.EOF) {
				render.DecodeError(w, err)
				return
			}
			refresh = data.RefreshToken
		}

		pair, err := authService.Refresh(r.Context(), refresh)
		if err != nil {
			renderError(w, l, "token refresh failed", err)
			return
		}

		authService.SetTokens(w, pair)
		render.JSON(w, tokensEnvelope{
			Message:      "Tokens refreshed successfully",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := authService.Logout(r.Context(), user.ID); err != nil {
			renderError(w, l, "logout failed", err)
			return
		}

		authService.ClearTokens(w)
		render.JSON(w, messageEnvelope{Message: "User logged out"})
	})
}

func handleChangePassword(authService authService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"notblank"`
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

		err = authService.ChangePassword(r.Context(), user.ID, data.OldPassword, data.NewPassword)
		if err != nil {
			renderError(w, l, "password change failed", err)
			return
		}

		render.JSON(w, messageEnvelope{Message: "Password changed successfully"})
	})
}

// Asset from multipart form file, nil if request has no such file
// Returned func closes the file
func formAsset(r *http.Request, field string) (*models.Asset, func(), error) {
	file, header, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, func() {}, nil
	case err != nil:
		return nil, func() {}, err
	}

	asset := &models.Asset{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}

	return asset, func() { _ = file.Close() }, nil
}
