package cookie // package cookie owns the SSO cookie contract shared across services

import (
	"net/http" // http.Cookie and SameSite constants
	"strings"  // prefix handling for the Authorization header
	"time"     // cookie expiry times

	"github.com/labstack/echo/v4" // echo context for reading and writing cookies
)

// Cookie names are part of the cross-service contract: every application on
// the parent domain reads the same names, so renaming one here without
// coordinating all verifying services breaks SSO.
const (
	TokenCookie   = "auth_token" // carries the signed bearer token
	SessionCookie = "session_id" // carries the server-side session identifier
	CSRFCookie    = "csrf_token" // carries the anti-forgery double-submit value
)

// Manager builds and parses the auth cookies with domain-correct attributes.
// Domain is the configurable parent domain (e.g. ".example.com") so every
// subdomain application can read the SSO cookie; Secure is enabled in
// production.
type Manager struct {
	Domain string
	Secure bool
}

func NewManager(domain string, secure bool) *Manager {
	return &Manager{Domain: domain, Secure: secure}
}

// SetAuthCookies emits the session cookie and the SSO token cookie on a
// successful authentication.  Both are HttpOnly and SameSite=Lax; the token
// cookie expires with the token itself, the session cookie with the session
// TTL carried in sessionExp.
func (m *Manager) SetAuthCookies(c echo.Context, sessionID string, sessionExp time.Time, token string, tokenExp time.Time) {
	c.SetCookie(m.build(SessionCookie, sessionID, sessionExp))
	c.SetCookie(m.build(TokenCookie, token, tokenExp))
}

// ClearAuthCookies sets already-expired cookies with identical name, domain
// and path, which is the only reliable way to make browsers drop them.
func (m *Manager) ClearAuthCookies(c echo.Context) {
	expired := time.Unix(0, 0).UTC()
	for _, name := range []string{SessionCookie, TokenCookie} {
		ck := m.build(name, "", expired)
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

// ReadSessionID returns the session identifier from the session cookie, or
// an empty string when the cookie is absent.
func (m *Manager) ReadSessionID(c echo.Context) string {
	ck, err := c.Cookie(SessionCookie)
	if err != nil || ck == nil {
		return ""
	}
	return ck.Value
}

// ReadToken resolves the bearer token for a request.  The Authorization
// header wins over the SSO cookie so API clients can override whatever a
// browser may have stored.
func (m *Manager) ReadToken(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	ck, err := c.Cookie(TokenCookie)
	if err != nil || ck == nil {
		return ""
	}
	return ck.Value
}

// SetCSRFCookie stores the anti-forgery token for the double-submit check.
// The cookie is host-scoped on purpose: only this service renders the forms
// that echo the value back.
func (m *Manager) SetCSRFCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCSRFCookie returns the cookie-bound anti-forgery token, empty when absent.
func (m *Manager) ReadCSRFCookie(c echo.Context) string {
	ck, err := c.Cookie(CSRFCookie)
	if err != nil || ck == nil {
		return ""
	}
	return ck.Value
}

// build constructs an auth cookie with the shared attribute set.
func (m *Manager) build(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   m.Domain,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
