package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
)

// Outward projection of the user: no password hash, no refresh token
type userResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type userEnvelope struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type tokensEnvelope struct {
	Message      string        `json:"message"`
	User         *userResponse `json:"user,omitempty"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

// Log error with level matching its kind and render it
func renderError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	switch apperrors.Kind(err) {
	case apperrors.ErrInternal, apperrors.ErrUpstreamFailure:
		l.Error(msg, "error", err)
	default:
		l.Debug(msg, "error", err)
	}
	render.AppError(w, err)
}

// Authenticated user, the auth gate has to be passed before
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.AppError(w, errors.New("handler is not behind auth gate"))
	}
	return user, ok
}
