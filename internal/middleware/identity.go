package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // HTTP status codes for responses

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/accounts/internal/cookie" // cookie manager resolves the bearer token
	"github.com/iliyamo/accounts/internal/utils"  // token service verifies signatures
)

// Context keys under which the resolved identity is stored.  Handlers and
// downstream middleware read these via c.Get().
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

// Authenticate returns a middleware that requires a valid bearer token and
// injects the verified identity into the request context.  The token is
// resolved from the Authorization header first and the SSO cookie second,
// matching how sibling services on the domain resolve it.  Every failure is
// the same generic 401; callers learn nothing about which check failed.
func Authenticate(tokens *utils.TokenService, cookies *cookie.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := cookies.ReadToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, err := tokens.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxUserID, id.UserID)
			c.Set(CtxEmail, id.Email)
			return next(c)
		}
	}
}

// CurrentUserID extracts the authenticated user id placed in the context by
// Authenticate.  The second return is false for anonymous requests.
func CurrentUserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(CtxUserID).(uint64)
	return v, ok
}
