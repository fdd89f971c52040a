package handler

import (
	"context"   // provides context with cancellation for DB calls
	"errors"    // sentinel error matching
	"net/http"  // HTTP status codes and primitives
	"strings"   // string manipulation utilities
	"time"      // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/accounts/internal/cache"      // redis session read-through
	"github.com/iliyamo/accounts/internal/config"     // app configuration
	"github.com/iliyamo/accounts/internal/cookie"     // SSO cookie contract
	"github.com/iliyamo/accounts/internal/model"      // domain records
	"github.com/iliyamo/accounts/internal/queue"      // auth event payloads
	"github.com/iliyamo/accounts/internal/repository" // sentinel errors
	queue_publisher "github.com/iliyamo/accounts/internal/service"
	"github.com/iliyamo/accounts/internal/utils"      // token service, hashing
)

// UserStore is the slice of the user repository the auth flows consume.
type UserStore interface {
	Create(ctx context.Context, email, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// SessionStore is the slice of the session repository the auth flows consume.
type SessionStore interface {
	Create(ctx context.Context, userID uint64, ip, userAgent string) (model.Session, error)
	GetByID(ctx context.Context, id string) (model.Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for the auth endpoints and orchestrates
// the sign-up/sign-in/refresh/sign-out/verify use cases.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Tokens   *utils.TokenService
	Cookies  *cookie.Manager
	Cache    *cache.SessionCache        // may be nil; degrades to DB reads
	Events   *queue_publisher.Publisher // may be nil; events are dropped
}

func NewAuthHandler(cfg config.Config, users UserStore, sessions SessionStore,
	tokens *utils.TokenService, cookies *cookie.Manager,
	sc *cache.SessionCache, events *queue_publisher.Publisher) *AuthHandler {
	return &AuthHandler{
		Cfg: cfg, Users: users, Sessions: sessions,
		Tokens: tokens, Cookies: cookies, Cache: sc, Events: events,
	}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type verifyReq struct {
	Token string `json:"token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User  userPart  `json:"user"`
	Token tokenPart `json:"token"`
}

// SignUp: create user and immediately perform sign-in semantics.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < utils.MinPasswordLength {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "password too short"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	u := model.User{ID: uid, Email: req.Email, Role: model.RoleUser}
	resp, err := h.establishSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign in failed"})
	}
	h.publish(queue.AuthEvent{
		Type: queue.EventSignedUp, UserID: u.ID, Email: u.Email,
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, resp)
}

// SignIn: verify credentials, create a session and mint a token.  A missing
// user and a wrong password produce the same response so the endpoint does
// not confirm which emails are registered.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.establishSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign in failed"})
	}
	h.publish(queue.AuthEvent{
		Type: queue.EventSignedIn, UserID: u.ID, Email: u.Email,
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, resp)
}

// Verify: check a token and return the embedded identity.  Verification is
// purely cryptographic (signature, expiry and issuer) so sibling services
// that share the secret but not the database get the same answer.  The
// session row is consulted only by Refresh and SignOut.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		raw = h.Cookies.ReadToken(c)
	}
	id, err := h.Tokens.Verify(raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false, "error": "invalid token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"user":  userPart{ID: id.UserID, Email: id.Email},
	})
}

// Refresh: mint a new token for a live session without re-submitting
// credentials.  The session row is the server-side revocation check; a
// deleted or expired session yields the same 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	sid := h.Cookies.ReadSessionID(c)
	if sid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.lookupSession(ctx, sid)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	u, err := h.Users.GetByID(ctx, s.UserID)
	if err != nil {
		// The owning user is gone; the session is worthless.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session not found"})
	}

	signed, err := h.Tokens.Sign(u.ID, u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	if err := h.Sessions.Touch(ctx, s.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "touch session failed"})
	}
	// The cached copy now carries a stale updated_at; drop it.
	h.Cache.Delete(ctx, s.ID, s.UserID)

	h.Cookies.SetAuthCookies(c, s.ID, h.sessionExpiry(s), signed.Token, signed.Exp)
	return c.JSON(http.StatusOK, authResp{
		User:  userPart{ID: u.ID, Email: u.Email, Role: string(u.Role)},
		Token: tokenPart{Token: signed.Token, Expires: signed.Exp},
	})
}

// User resolves the current identity from a bearer/SSO token first, then
// falls back to the session cookie for browser clients whose token cookie
// has already expired.
func (h *AuthHandler) User(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var uid uint64
	if raw := h.Cookies.ReadToken(c); raw != "" {
		if id, err := h.Tokens.Verify(raw); err == nil {
			uid = id.UserID
		}
	}
	if uid == 0 {
		sid := h.Cookies.ReadSessionID(c)
		if sid == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		s, err := h.lookupSession(ctx, sid)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		uid = s.UserID
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: u.ID, Email: u.Email, Role: string(u.Role)},
	})
}

// SignOut deletes the session and clears the cookies.  The operation is
// idempotent: signing out an already dead session clears cookies and
// returns the same 204.  Previously issued tokens stay cryptographically
// valid until their own expiry but can no longer be refreshed.
func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sid := h.Cookies.ReadSessionID(c)
	if sid != "" {
		if s, err := h.lookupSession(ctx, sid); err == nil {
			if err := h.Sessions.Delete(ctx, s.ID); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign out failed"})
			}
			h.Cache.Delete(ctx, s.ID, s.UserID)
			if u, err := h.Users.GetByID(ctx, s.UserID); err == nil {
				h.publish(queue.AuthEvent{
					Type: queue.EventSignedOut, UserID: u.ID, Email: u.Email, SessionID: s.ID,
					IPAddress: c.RealIP(), OccurredAt: time.Now().UTC().Format(time.RFC3339),
				})
			}
		}
	}
	h.Cookies.ClearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// establishSession creates the server-side session, mints the token and
// emits both cookies.  SignUp and SignIn share these semantics.
func (h *AuthHandler) establishSession(ctx context.Context, c echo.Context, u model.User) (authResp, error) {
	s, err := h.Sessions.Create(ctx, u.ID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return authResp{}, err
	}
	signed, err := h.Tokens.Sign(u.ID, u.Email)
	if err != nil {
		return authResp{}, err
	}
	h.Cache.Set(ctx, s)
	h.Cookies.SetAuthCookies(c, s.ID, h.sessionExpiry(s), signed.Token, signed.Exp)
	return authResp{
		User:  userPart{ID: u.ID, Email: u.Email, Role: string(u.Role)},
		Token: tokenPart{Token: signed.Token, Expires: signed.Exp},
	}, nil
}

// lookupSession reads through the cache and falls back to the store.
func (h *AuthHandler) lookupSession(ctx context.Context, id string) (model.Session, error) {
	if s, ok := h.Cache.Get(ctx, id); ok {
		return s, nil
	}
	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	h.Cache.Set(ctx, s)
	return s, nil
}

func (h *AuthHandler) sessionExpiry(s model.Session) time.Time {
	return s.CreatedAt.Add(time.Duration(h.Cfg.SessionTTLHours) * time.Hour)
}

// publish fires an auth event without blocking the request: broker dial
// time must not add to sign-in latency, and a broker outage only costs the
// audit line.
func (h *AuthHandler) publish(ev queue.AuthEvent) {
	if h.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Events.Publish(ctx, ev)
	}()
}
