package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Brunomssil/design_platform/internal/audit"
	"github.com/Brunomssil/design_platform/internal/auth"
	"github.com/Brunomssil/design_platform/internal/logging"
	"github.com/Brunomssil/design_platform/internal/mykafka"
	"github.com/Brunomssil/design_platform/internal/tokens"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

type AuthHandler struct {
	Engine    *auth.Engine
	JWTSecret []byte
	Producer  EventPublisher
	Audit     *audit.Publisher
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// authStatus maps engine error kinds to transport status codes. Credential
// and token failures all collapse to 401.
func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidOrExpiredToken),
		errors.Is(err, auth.ErrTokenReuseDetected),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

func (h *AuthHandler) auditLog(c echo.Context, action, userID, details string) {
	if h.Audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Audit.Publish(ctx, action, userID, details); err != nil {
		logging.FromContext(c.Request().Context()).Error("audit publish error", "action", action, "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := h.Engine.Register(ctx, req.Email, req.Password)
	if err != nil {
		code := authStatus(err)
		l.Warn("register_failed", "status", code, "error", err)
		if code == http.StatusConflict {
			return echo.NewHTTPError(code, "email already registered")
		}
		return echo.NewHTTPError(code, "registration failed")
	}

	h.publish(c, mykafka.TopicUserEvents, user.ID, map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})
	h.auditLog(c, "user_registered", user.ID, "new account: "+user.Email)

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		code := authStatus(err)
		l.Warn("login_failed", "status", code, "error", err)
		if code == http.StatusInternalServerError {
			return echo.NewHTTPError(code, "internal server error")
		}
		return echo.NewHTTPError(code, "invalid email or password")
	}

	h.setTokenCookies(c, pair)

	claims, _ := tokens.AccessClaimsFromToken(pair.AccessToken, h.JWTSecret)
	userID := ""
	if claims != nil {
		userID = claims.Subject
	}
	h.publish(c, mykafka.TopicUserEvents, userID, map[string]interface{}{
		"type":    "user_logged_in",
		"user_id": userID,
		"email":   req.Email,
	})
	h.auditLog(c, "user_logged_in", userID, "login: "+req.Email)

	l.Info("login_successful")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	accessToken := h.accessTokenFrom(c)
	refreshToken := h.refreshTokenFrom(c)
	if refreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	pair, err := h.Engine.Refresh(ctx, accessToken, refreshToken)
	if err != nil {
		code := authStatus(err)
		if errors.Is(err, auth.ErrTokenReuseDetected) {
			l.Warn("refresh_reuse_detected", "status", code)
			h.auditLog(c, "token_reuse_detected", "", "refresh token replayed, all sessions revoked")
			c.SetCookie(DeleteCookie("accessToken", "/"))
			c.SetCookie(DeleteCookie("refreshToken", "/"))
			return echo.NewHTTPError(code, "token reuse detected")
		}
		l.Warn("refresh_failed", "status", code, "error", err)
		if code == http.StatusInternalServerError {
			return echo.NewHTTPError(code, "internal server error")
		}
		return echo.NewHTTPError(code, "invalid or expired token")
	}

	h.setTokenCookies(c, pair)

	l.Info("refresh_successful")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// LogOut revokes every refresh token of the authenticated user. One device
// logging out ends all sessions, matching the leak-response semantics.
func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	accessToken := h.accessTokenFrom(c)
	claims, err := tokens.AccessClaimsFromToken(accessToken, h.JWTSecret)
	if err != nil || claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	if err := h.Engine.RevokeAll(ctx, claims.Subject); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))
	h.auditLog(c, "user_logged_out", claims.Subject, "all sessions revoked")

	l.Info("logout_successful", "user_id", claims.Subject)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) setTokenCookies(c echo.Context, pair *auth.TokenPair) {
	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", time.Now().Add(tokens.AccessTokenTTL)))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", time.Now().Add(auth.RefreshTokenTTL)))
}

func (h *AuthHandler) accessTokenFrom(c echo.Context) string {
	const bearerPrefix = "Bearer "
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > len(bearerPrefix) && header[:len(bearerPrefix)] == bearerPrefix {
		return header[len(bearerPrefix):]
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func (h *AuthHandler) refreshTokenFrom(c echo.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie("refreshToken"); err == nil {
		return ck.Value
	}
	return ""
}
