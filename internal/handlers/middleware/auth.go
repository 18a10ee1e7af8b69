package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/handlers/userctx"
	"github.com/nkiryanov/vidtube/internal/models"
)

type authService interface {
	// Access token presented with request, empty if none
	AccessToken(r *http.Request) string

	// User the access token was issued for
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type authLogger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth gate: attach authenticated user to request context or stop the request
// Rejection cause is logged only, client always gets the same response
func AuthStage(as authService, l authLogger) Stage {
	return func(r *http.Request) (*http.Request, error) {
		access := as.AccessToken(r)
		if access == "" {
			l.Debug("request not authenticated", "uri", r.RequestURI, "reason", "access token missing")
			return nil, fmt.Errorf("access token missing: %w", apperrors.ErrUnauthorized)
		}

		user, err := as.Authenticate(r.Context(), access)
		switch {
		case err == nil:
			return r.WithContext(userctx.New(r.Context(), user)), nil
		case apperrors.Kind(err) == apperrors.ErrUnauthorized:
			l.Debug("request not authenticated", "uri", r.RequestURI, "reason", err.Error())
			return nil, err
		default:
			l.Error("failed to authenticate request", "uri", r.RequestURI, "error", err)
			return nil, err
		}
	}
}

func AuthMiddleware(as authService, l authLogger) func(http.Handler) http.Handler {
	return Stages(AuthStage(as, l))
}
