package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Brunomssil/design_platform/internal/tokens"
)

type Middleware struct {
	JWTSecret []byte
}

// RequireLogin validates the access token and stashes the caller's identity
// in the echo context. Token rotation happens only through the refresh
// endpoint, an expired access token here is a plain 401.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := accessTokenFrom(c)
		if tokenStr == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "access token missing")
		}

		claims, err := tokens.AccessClaimsFromToken(tokenStr, m.JWTSecret)
		if err != nil || claims == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
		}

		c.Set("userID", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("roles", claims.Roles)
		return next(c)
	}
}

func accessTokenFrom(c echo.Context) string {
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
