package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/handlers/middleware"
	"github.com/nkiryanov/vidtube/internal/logger"
	"github.com/nkiryanov/vidtube/internal/models"
	"github.com/nkiryanov/vidtube/internal/service/auth"
	"github.com/nkiryanov/vidtube/internal/service/video"
)

const (
	UsersPrefix  = "/api/v1/users"
	VideosPrefix = "/api/v1/videos"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	videoService videoService,
	logger logger.Logger,
	corsOrigins []string,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	users := http.NewServeMux()

	users.Handle("POST /register", handleRegister(authService, logger))
	users.Handle("POST /login", handleLogin(authService, logger))
	users.Handle("POST /refresh-token", handleRefresh(authService, logger))

	users.Handle("POST /logout", withAuth(handleLogout(authService, logger)))

	// Every profile route is served on two paths: the original one and REST like one
	for _, route := range []struct {
		patterns []string
		handler  http.Handler
	}{
		{[]string{"POST /update-password", "POST /change-password"}, handleChangePassword(authService, logger)},
		{[]string{"GET /get-current-user", "GET /current-user"}, handleCurrentUser(userService, logger)},
		{[]string{"POST /update-profile", "PATCH /update-account"}, handleUpdateAccount(userService, logger)},
		{[]string{"POST /update-avatar", "PATCH /avatar"}, handleUpdateAvatar(userService, logger)},
		{[]string{"POST /update-cover", "PATCH /cover-image"}, handleUpdateCoverImage(userService, logger)},
	} {
		for _, pattern := range route.patterns {
			users.Handle(pattern, withAuth(route.handler))
		}
	}

	videos := http.NewServeMux()

	videos.Handle("POST /upload-video", withAuth(handleUploadVideo(videoService, logger)))
	videos.Handle("GET /getVideoById/{videoId}", handleGetVideo(videoService, logger))
	videos.Handle("DELETE /delete-video/{videoId}", withAuth(handleDeleteVideo(videoService, logger)))

	root := http.NewServeMux()
	root.Handle(UsersPrefix+"/", http.StripPrefix(UsersPrefix, users))
	root.Handle(VideosPrefix+"/", http.StripPrefix(VideosPrefix, videos))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(corsOrigins),
	)

	return handler
}

type authService interface {
	// Register user, avatar is required
	// Has to return apperrors.ErrUserAlreadyExists if username or email taken
	Register(ctx context.Context, params auth.RegisterParams) (models.User, error)

	// Login user by username or email and start new session
	Login(ctx context.Context, params auth.LoginParams) (models.User, models.TokenPair, error)

	// Rotate refresh token and issue new pair
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error

	// Get user the access token issued for
	Authenticate(ctx context.Context, access string) (models.User, error)

	// Tokens transport: cookies and headers
	AccessToken(r *http.Request) string
	RefreshToken(r *http.Request) string
	SetTokens(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)
}

type userService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName string, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar *models.Asset) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, cover *models.Asset) (models.User, error)
}

type videoService interface {
	Upload(ctx context.Context, ownerID uuid.UUID, params video.UploadParams) (models.Video, error)
	GetVideo(ctx context.Context, videoID uuid.UUID) (models.Video, error)

	// Has to return apperrors.ErrVideoNotFound if video is owned by other user
	DeleteVideo(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error)
}
