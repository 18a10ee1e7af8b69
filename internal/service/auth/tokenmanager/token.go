package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
)

// Class of the token. Every class is signed with its own secret
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
	Class  Class     `json:"cls"`

	// Snapshot of the user at the moment access token was issued
	// Informational only, never trust it over stored user
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// Token manager with sensible default
type Config struct {
	// Secrets to sign access and refresh tokens
	// Required to be set and must differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	access  classConfig
	refresh classConfig

	now func() time.Time
}

type classConfig struct {
	key []byte
	ttl time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, errors.New("access and refresh secrets must not be empty")
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, errors.New("access and refresh secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		alg:     alg,
		access:  classConfig{key: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
		refresh: classConfig{key: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		now:     cfg.Now,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.access.ttl }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refresh.ttl }

// Issue access token with user snapshot embedded
func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	return m.issue(ClassAccess, Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	})
}

// Issue refresh token that carries user id only
func (m *TokenManager) IssueRefresh(user models.User) (models.IssuedToken, error) {
	return m.issue(ClassRefresh, Claims{UserID: user.ID})
}

func (m *TokenManager) IssuePair(user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.IssueAccess(user)
	if err != nil {
		return pair, err
	}

	refresh, err := m.IssueRefresh(user)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) issue(class Class, claims Claims) (models.IssuedToken, error) {
	cc := m.classConfig(class)
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(cc.ttl)

	claims.Class = class
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(cc.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", class, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify token signature and expiry and return its claims
// Token of other class is rejected even if it is valid otherwise
func (m *TokenManager) Verify(token string, class Class) (Claims, error) {
	claims := Claims{}
	cc := m.classConfig(class)

	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) { return cc.key, nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case err == nil && claims.Class != class:
		return Claims{}, fmt.Errorf("expected %s token, got %q: %w", class, claims.Class, apperrors.ErrTokenInvalid)
	case err == nil && claims.UserID == uuid.Nil:
		return Claims{}, fmt.Errorf("token without subject: %w", apperrors.ErrTokenInvalid)
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}

func (m *TokenManager) classConfig(class Class) classConfig {
	if class == ClassRefresh {
		return m.refresh
	}
	return m.access
}
