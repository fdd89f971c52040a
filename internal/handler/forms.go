package handler

// forms.go serves the browser-facing sign-in and sign-up pages.  Rendering
// is intentionally bare, since styling and templating live in the applications
// that consume this service, but the forms carry the anti-forgery hidden
// field and their POST routes sit behind the CSRF and rate-limit middleware.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/accounts/internal/model"
	"github.com/iliyamo/accounts/internal/queue"
	"github.com/iliyamo/accounts/internal/repository"
	"github.com/iliyamo/accounts/internal/utils"
)

const formPage = `<!doctype html>
<html><body>
<h1>%s</h1>
%s
<form method="post" action="%s">
  <input type="hidden" name="csrf_token" value="%s">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">%s</button>
</form>
</body></html>`

// SignInForm renders the sign-in page with a fresh anti-forgery token bound
// to the response cookie.
func (h *AuthHandler) SignInForm(c echo.Context) error {
	return h.renderForm(c, "Sign in", "/sign_in", "")
}

// SignUpForm renders the sign-up page.
func (h *AuthHandler) SignUpForm(c echo.Context) error {
	return h.renderForm(c, "Sign up", "/sign_up", "")
}

// SignInSubmit handles the browser form POST.  The CSRF middleware has
// already validated the double-submit pair before this runs.
func (h *AuthHandler) SignInSubmit(c echo.Context) error {
	email := utils.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	if email == "" || password == "" {
		return h.renderFormError(c, "Sign in", "/sign_in", "Email and password are required.", http.StatusBadRequest)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return h.renderFormError(c, "Sign in", "/sign_in", "Invalid credentials.", http.StatusUnauthorized)
		}
		return h.renderFormError(c, "Sign in", "/sign_in", "Something went wrong.", http.StatusInternalServerError)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return h.renderFormError(c, "Sign in", "/sign_in", "Invalid credentials.", http.StatusUnauthorized)
	}

	if _, err := h.establishSession(ctx, c, u); err != nil {
		return h.renderFormError(c, "Sign in", "/sign_in", "Something went wrong.", http.StatusInternalServerError)
	}
	h.publish(queue.AuthEvent{
		Type: queue.EventSignedIn, UserID: u.ID, Email: u.Email,
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.Redirect(http.StatusSeeOther, "/")
}

// SignUpSubmit registers a new user from the browser form and signs them in.
func (h *AuthHandler) SignUpSubmit(c echo.Context) error {
	email := utils.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	if email == "" || password == "" {
		return h.renderFormError(c, "Sign up", "/sign_up", "Email and password are required.", http.StatusBadRequest)
	}
	if len(password) < utils.MinPasswordLength {
		return h.renderFormError(c, "Sign up", "/sign_up", "Password is too short.", http.StatusUnprocessableEntity)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, email, password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return h.renderFormError(c, "Sign up", "/sign_up", "Email is already registered.", http.StatusUnprocessableEntity)
		}
		return h.renderFormError(c, "Sign up", "/sign_up", "Something went wrong.", http.StatusInternalServerError)
	}

	u := model.User{ID: uid, Email: email, Role: model.RoleUser}
	if _, err := h.establishSession(ctx, c, u); err != nil {
		return h.renderFormError(c, "Sign up", "/sign_up", "Something went wrong.", http.StatusInternalServerError)
	}
	h.publish(queue.AuthEvent{
		Type: queue.EventSignedUp, UserID: u.ID, Email: u.Email,
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) renderForm(c echo.Context, title, action, errMsg string) error {
	token, err := utils.NewCSRFToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	h.Cookies.SetCSRFCookie(c, token)
	banner := ""
	if errMsg != "" {
		banner = fmt.Sprintf("<p>%s</p>", errMsg)
	}
	page := fmt.Sprintf(formPage, title, banner, action, token, title)
	return c.HTML(http.StatusOK, page)
}

// renderFormError re-renders the form with a banner and a fresh CSRF token,
// since the failed submission consumed the previous pair.
func (h *AuthHandler) renderFormError(c echo.Context, title, action, msg string, status int) error {
	token, err := utils.NewCSRFToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	h.Cookies.SetCSRFCookie(c, token)
	page := fmt.Sprintf(formPage, title, fmt.Sprintf("<p>%s</p>", msg), action, token, title)
	return c.HTML(status, page)
}
