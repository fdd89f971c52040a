package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/accounts/internal/model"
)

// CtxUser is the context key under which RequireAdmin stores the loaded
// user record for downstream handlers.
const CtxUser = "current_user"

// UserLoader is the subset of the user repository the admin gate needs.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RequireAdmin is the authorization boundary in front of administrative
// routes.  It loads the authenticated user and checks the role column;
// the role deliberately never travels inside the token, so a demotion
// takes effect on the next request rather than at token expiry.  Any
// non-admin identity, including one whose user row has vanished, receives
// the same uniform 403.  It assumes Authenticate ran earlier in the chain.
func RequireAdmin(users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := CurrentUserID(c)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			u, err := users.GetByID(c.Request().Context(), uid)
			if err != nil || u.Role != model.RoleAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			c.Set(CtxUser, u)
			return next(c)
		}
	}
}
