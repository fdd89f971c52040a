package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/accounts/internal/cache"
	"github.com/iliyamo/accounts/internal/middleware"
	"github.com/iliyamo/accounts/internal/model"
	"github.com/iliyamo/accounts/internal/queue"
	"github.com/iliyamo/accounts/internal/repository"
	queue_publisher "github.com/iliyamo/accounts/internal/service"
)

// AdminUserStore is the slice of the user repository the admin operations
// consume.
type AdminUserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateRole(ctx context.Context, id uint64, role model.Role) error
	Delete(ctx context.Context, id uint64) error
}

// AdminSessionStore revokes sessions in bulk.
type AdminSessionStore interface {
	DeleteAllForUser(ctx context.Context, userID uint64) error
}

// AdminHandler implements the operations behind the admin gate: role
// changes, account removal and forced session revocation.  The RequireAdmin
// middleware has already loaded and authorized the acting admin before any
// of these run.
type AdminHandler struct {
	Users    AdminUserStore
	Sessions AdminSessionStore
	Cache    *cache.SessionCache
	Events   *queue_publisher.Publisher
}

func NewAdminHandler(users AdminUserStore, sessions AdminSessionStore,
	sc *cache.SessionCache, events *queue_publisher.Publisher) *AdminHandler {
	return &AdminHandler{Users: users, Sessions: sessions, Cache: sc, Events: events}
}

type roleReq struct {
	Role string `json:"role"`
}

// UpdateRole sets a user's role to one of the two known values.  An admin
// may not change their own role: demoting yourself through the only gate
// that could restore the role is a lockout, not an operation.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	actor, target, ok := h.actorAndTarget(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if actor.ID == target {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unknown role"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, target, role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update role failed"})
	}
	h.publishFor(ctx, target, queue.EventRoleChanged, string(role))
	return c.JSON(http.StatusOK, echo.Map{"id": target, "role": string(role)})
}

// DeleteUser removes an account and, through the repository transaction,
// every session it holds.  Deleting your own account is refused for the
// same lockout reason as self-demotion.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, target, ok := h.actorAndTarget(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if actor.ID == target {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Capture the email for the audit event before the row disappears.
	u, err := h.Users.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if err := h.Users.Delete(ctx, target); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}
	h.Cache.DeleteAllForUser(ctx, target)
	h.publishEvent(queue.AuthEvent{
		Type: queue.EventUserDeleted, UserID: u.ID, Email: u.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}

// RevokeSessions deletes every session a user holds, forcing a fresh
// sign-in everywhere.  Admins may revoke their own sessions; unlike
// deletion or demotion this only costs them a login.
func (h *AdminHandler) RevokeSessions(c echo.Context) error {
	_, target, ok := h.actorAndTarget(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.DeleteAllForUser(ctx, target); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke sessions failed"})
	}
	h.Cache.DeleteAllForUser(ctx, target)
	h.publishFor(ctx, target, queue.EventSessionsRevoked, "")
	return c.NoContent(http.StatusNoContent)
}

// actorAndTarget pulls the acting admin placed in context by RequireAdmin
// and parses the :id route parameter.
func (h *AdminHandler) actorAndTarget(c echo.Context) (model.User, uint64, bool) {
	actor, _ := c.Get(middleware.CtxUser).(model.User)
	target, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || target == 0 {
		return actor, 0, false
	}
	return actor, target, true
}

func (h *AdminHandler) publishFor(ctx context.Context, userID uint64, eventType, role string) {
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return
	}
	h.publishEvent(queue.AuthEvent{
		Type: eventType, UserID: u.ID, Email: u.Email, Role: role,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AdminHandler) publishEvent(ev queue.AuthEvent) {
	if h.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Events.Publish(ctx, ev)
	}()
}
