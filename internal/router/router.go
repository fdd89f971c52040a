package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/accounts/internal/cookie"     // cookie manager shared by middleware
	"github.com/iliyamo/accounts/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/accounts/internal/middleware" // import middleware for auth, CSRF and rate limiting
	"github.com/iliyamo/accounts/internal/utils"      // token service consumed by the identity middleware
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the JSON authentication API.  The route paths are a
// cross-service contract: every application on the cookie domain calls these
// exact paths, so they must not drift.  The credential-submission endpoints
// sit behind the injected rate limiter; the token-authenticated endpoints do
// not, since possessing a valid token already proves a prior allowed attempt.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter *middleware.Limiter) {
	limited := middleware.RateLimit(limiter)

	g := e.Group("/api/auth")
	// Credential submissions are the brute-force surface; both are limited.
	g.POST("/signup", a.SignUp, limited)
	g.POST("/signin", a.SignIn, limited)
	// Token verification is stateless and unauthenticated by design: sibling
	// services call it to check tokens they received.
	g.POST("/verify", a.Verify)
	// Refresh requires only the session cookie; the live session row is the
	// server-side revocation check.
	g.POST("/refresh", a.Refresh)
	// Identity resolution accepts a bearer token or a session cookie.
	g.GET("/user", a.User)
	// Sign-out is idempotent and clears cookies even for dead sessions.
	g.DELETE("/signout", a.SignOut)
}

// RegisterForms registers the browser-facing HTML form routes.  GET renders
// the form and issues the anti-forgery cookie; POST is wrapped by the CSRF
// double-submit check and, for credential submissions, the rate limiter.
func RegisterForms(e *echo.Echo, a *handler.AuthHandler, cookies *cookie.Manager, limiter *middleware.Limiter) {
	csrf := middleware.CSRF(cookies)
	limited := middleware.RateLimit(limiter)

	e.GET("/sign_in", a.SignInForm, csrf)
	e.POST("/sign_in", a.SignInSubmit, csrf, limited)
	e.GET("/sign_up", a.SignUpForm, csrf)
	e.POST("/sign_up", a.SignUpSubmit, csrf, limited)
}

// RegisterAdmin registers the role-gated administrative operations.  The
// chain is Authenticate (valid token required) then RequireAdmin (role
// column check against the database), so a demoted admin loses access on
// their next request regardless of what their token still claims.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, tokens *utils.TokenService, cookies *cookie.Manager, users middleware.UserLoader) {
	g := e.Group("/api/admin")
	g.Use(middleware.Authenticate(tokens, cookies))
	g.Use(middleware.RequireAdmin(users))

	g.PATCH("/users/:id/role", h.UpdateRole)
	g.DELETE("/users/:id", h.DeleteUser)
	g.DELETE("/users/:id/sessions", h.RevokeSessions)
}
