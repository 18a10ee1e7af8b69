package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/vidtube/internal/models"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessAuthScheme  = "Bearer"
)

type CookieConfig struct {
	AccessName  string
	RefreshName string

	// Set cookies over https only
	// Has to be disabled for local development without tls only
	Insecure bool
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.AccessName == "" {
		c.AccessName = defaultAccessCookieName
	}
	if c.RefreshName == "" {
		c.RefreshName = defaultRefreshCookieName
	}
	return c
}

// Set both tokens as http only cookies living as long as the token of its class
func (s *Service) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.cookies.AccessName, pair.Access.Value, s.tokenManager.AccessTTL()))
	http.SetCookie(w, s.cookie(s.cookies.RefreshName, pair.Refresh.Value, s.tokenManager.RefreshTTL()))
}

// Expire token cookies on client
func (s *Service) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.cookies.AccessName, s.cookies.RefreshName} {
		http.SetCookie(w, s.cookie(name, "", -1))
	}
}

// Access token from cookie or, if there is no cookie, from 'Authorization: Bearer' header
// Empty string if request has none
func (s *Service) AccessToken(r *http.Request) string {
	if c, err := r.Cookie(s.cookies.AccessName); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, defaultAccessAuthScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// Refresh token from cookie, empty string if request has none
func (s *Service) RefreshToken(r *http.Request) string {
	c, err := r.Cookie(s.cookies.RefreshName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Negative ttl deletes the cookie
func (s *Service) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !s.cookies.Insecure,
		SameSite: http.SameSiteStrictMode,
	}
}
