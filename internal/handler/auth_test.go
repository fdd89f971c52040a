package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/accounts/internal/cache"
	"github.com/iliyamo/accounts/internal/config"
	"github.com/iliyamo/accounts/internal/cookie"
	"github.com/iliyamo/accounts/internal/model"
	"github.com/iliyamo/accounts/internal/repository"
	"github.com/iliyamo/accounts/internal/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// ----- in-memory fakes -----

type fakeUsers struct {
	seq  uint64
	byID map[uint64]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: make(map[uint64]model.User)} }

func (f *fakeUsers) Create(_ context.Context, email, password string, cost int) (uint64, error) {
	email = utils.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.seq++
	f.byID[f.seq] = model.User{ID: f.seq, Email: email, PasswordHash: hash, Role: model.RoleUser}
	return f.seq, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = utils.NormalizeEmail(email)
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id uint64, role model.Role) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uint64) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeSessions struct {
	seq  int
	ttl  time.Duration
	byID map[string]model.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ttl: 168 * time.Hour, byID: make(map[string]model.Session)}
}

func (f *fakeSessions) Create(_ context.Context, userID uint64, ip, userAgent string) (model.Session, error) {
	f.seq++
	s := model.Session{
		ID:        fmt.Sprintf("sess-%d", f.seq),
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (model.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Session{}, repository.ErrSessionNotFound
	}
	// A row past its TTL is reported as absent, matching the SQL store.
	if f.ttl > 0 && time.Now().UTC().After(s.CreatedAt.Add(f.ttl)) {
		return model.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Touch(_ context.Context, id string) error {
	if s, ok := f.byID[id]; ok {
		s.UpdatedAt = time.Now().UTC()
		f.byID[id] = s
	}
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeSessions) DeleteAllForUser(_ context.Context, userID uint64) error {
	for id, s := range f.byID {
		if s.UserID == userID {
			delete(f.byID, id)
		}
	}
	return nil
}

// ----- harness -----

func newTestHandler() (*AuthHandler, *fakeUsers, *fakeSessions) {
	cfg := config.Config{
		Env:             "test",
		JWTSecret:       testSecret,
		TokenIssuer:     "accounts.example.com",
		TokenTTLHours:   1,
		SessionTTLHours: 168,
		CookieDomain:    ".example.com",
		BcryptCost:      bcrypt.MinCost,
	}
	users := newFakeUsers()
	sessions := newFakeSessions()
	h := NewAuthHandler(cfg,
		users, sessions,
		utils.NewTokenService(cfg.JWTSecret, cfg.TokenIssuer, time.Hour),
		cookie.NewManager(cfg.CookieDomain, false),
		cache.NewSessionCache(nil, 168*time.Hour),
		nil,
	)
	return h, users, sessions
}

func jsonRequest(method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req, httptest.NewRecorder()
}

func respCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func signUp(t *testing.T, h *AuthHandler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signup",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if err := h.SignUp(e.NewContext(req, rec)); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return rec
}

func signIn(t *testing.T, h *AuthHandler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signin",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if err := h.SignIn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return rec
}

// ----- tests -----

func TestSignUpSetsSessionAndCookies(t *testing.T) {
	h, _, sessions := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token := body["token"].(map[string]any)["token"].(string)
	if token == "" {
		t.Fatal("no token in response")
	}
	if respCookie(rec, cookie.SessionCookie) == nil || respCookie(rec, cookie.TokenCookie) == nil {
		t.Fatal("auth cookies not set")
	}
	if len(sessions.byID) != 1 {
		t.Fatalf("expected 1 session, have %d", len(sessions.byID))
	}
}

func TestSignUpValidation(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	// Under-length password.
	req, rec := jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"a@example.com","password":"short"}`)
	if err := h.SignUp(e.NewContext(req, rec)); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short password: got %d", rec.Code)
	}

	// Not an email.
	req, rec = jsonRequest(http.MethodPost, "/api/auth/signup", `{"email":"nonsense","password":"password123"}`)
	if err := h.SignUp(e.NewContext(req, rec)); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad email: got %d", rec.Code)
	}
}

func TestSignInValidation(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	for _, body := range []string{
		`{"email":"","password":"password123"}`,
		`{"email":"a@example.com","password":""}`,
		`{}`,
	} {
		req, rec := jsonRequest(http.MethodPost, "/api/auth/signin", body)
		if err := h.SignIn(e.NewContext(req, rec)); err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("body %s: got %d, want 422", body, rec.Code)
		}
	}
}

func TestEmailUniquenessIsCaseInsensitive(t *testing.T) {
	h, _, _ := newTestHandler()

	if rec := signUp(t, h, "User@Example.com", "password123"); rec.Code != http.StatusOK {
		t.Fatalf("first registration: %d", rec.Code)
	}
	// Same address, different casing: duplicate.
	if rec := signUp(t, h, "user@example.com", "password123"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("lower-case duplicate accepted: %d", rec.Code)
	}
	if rec := signUp(t, h, "USER@EXAMPLE.COM", "password123"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("upper-case duplicate accepted: %d", rec.Code)
	}
	// Sign-in with different casing succeeds.
	if rec := signIn(t, h, "user@example.com", "password123"); rec.Code != http.StatusOK {
		t.Fatalf("case-normalized sign-in failed: %d", rec.Code)
	}
}

func TestSignInDoesNotLeakWhichCheckFailed(t *testing.T) {
	h, _, _ := newTestHandler()
	signUp(t, h, "a@example.com", "password123")

	unknown := signIn(t, h, "nobody@example.com", "password123")
	wrongPass := signIn(t, h, "a@example.com", "wrong-password")

	if unknown.Code != http.StatusUnauthorized || wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("codes: unknown=%d wrong=%d", unknown.Code, wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Fatalf("responses differ: %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	h, _, _ := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")
	token := decodeBody(t, rec)["token"].(map[string]any)["token"].(string)

	e := echo.New()
	req, vrec := jsonRequest(http.MethodPost, "/api/auth/verify", fmt.Sprintf(`{"token":%q}`, token))
	if err := h.Verify(e.NewContext(req, vrec)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if vrec.Code != http.StatusOK {
		t.Fatalf("got %d", vrec.Code)
	}
	body := decodeBody(t, vrec)
	if body["valid"] != true {
		t.Fatalf("valid = %v", body["valid"])
	}
	if body["user"].(map[string]any)["email"] != "a@example.com" {
		t.Fatalf("user = %v", body["user"])
	}

	// Tampered token is invalid.
	req, vrec = jsonRequest(http.MethodPost, "/api/auth/verify", fmt.Sprintf(`{"token":%q}`, token+"x"))
	if err := h.Verify(e.NewContext(req, vrec)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if vrec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token: got %d", vrec.Code)
	}
}

func TestRefreshRequiresLiveSession(t *testing.T) {
	h, _, sessions := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")
	sessCookie := respCookie(rec, cookie.SessionCookie)

	e := echo.New()
	req, rrec := jsonRequest(http.MethodPost, "/api/auth/refresh", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.Refresh(e.NewContext(req, rrec)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rrec.Code != http.StatusOK {
		t.Fatalf("refresh with live session: %d (%s)", rrec.Code, rrec.Body.String())
	}
	if decodeBody(t, rrec)["token"].(map[string]any)["token"] == "" {
		t.Fatal("refresh returned no token")
	}

	// Revoke the session server-side; refresh must now fail.
	delete(sessions.byID, sessCookie.Value)
	req, rrec = jsonRequest(http.MethodPost, "/api/auth/refresh", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.Refresh(e.NewContext(req, rrec)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rrec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with revoked session: %d", rrec.Code)
	}

	// No cookie at all.
	req, rrec = jsonRequest(http.MethodPost, "/api/auth/refresh", "")
	if err := h.Refresh(e.NewContext(req, rrec)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rrec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without cookie: %d", rrec.Code)
	}
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	h, _, sessions := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")
	sessCookie := respCookie(rec, cookie.SessionCookie)

	// Backdate the session past its TTL. The row still exists, but the
	// store must report it as absent.
	s := sessions.byID[sessCookie.Value]
	s.CreatedAt = time.Now().UTC().Add(-sessions.ttl - time.Minute)
	sessions.byID[s.ID] = s

	e := echo.New()
	req, rrec := jsonRequest(http.MethodPost, "/api/auth/refresh", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.Refresh(e.NewContext(req, rrec)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rrec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with expired session: %d, want 401", rrec.Code)
	}
}

func TestUserResolvesTokenThenSession(t *testing.T) {
	h, _, _ := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")
	token := decodeBody(t, rec)["token"].(map[string]any)["token"].(string)
	sessCookie := respCookie(rec, cookie.SessionCookie)

	e := echo.New()

	// Bearer token.
	req, urec := jsonRequest(http.MethodGet, "/api/auth/user", "")
	req.Header.Set("Authorization", "Bearer "+token)
	if err := h.User(e.NewContext(req, urec)); err != nil {
		t.Fatalf("User: %v", err)
	}
	if urec.Code != http.StatusOK {
		t.Fatalf("bearer resolution: %d", urec.Code)
	}

	// Session cookie only.
	req, urec = jsonRequest(http.MethodGet, "/api/auth/user", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.User(e.NewContext(req, urec)); err != nil {
		t.Fatalf("User: %v", err)
	}
	if urec.Code != http.StatusOK {
		t.Fatalf("session resolution: %d", urec.Code)
	}
	if decodeBody(t, urec)["user"].(map[string]any)["email"] != "a@example.com" {
		t.Fatalf("unexpected identity: %s", urec.Body.String())
	}

	// Nothing.
	req, urec = jsonRequest(http.MethodGet, "/api/auth/user", "")
	if err := h.User(e.NewContext(req, urec)); err != nil {
		t.Fatalf("User: %v", err)
	}
	if urec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous resolution: %d", urec.Code)
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	h, _, sessions := newTestHandler()
	rec := signUp(t, h, "a@example.com", "password123")
	sessCookie := respCookie(rec, cookie.SessionCookie)

	e := echo.New()
	signOut := func() *httptest.ResponseRecorder {
		req, srec := jsonRequest(http.MethodDelete, "/api/auth/signout", "")
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
		if err := h.SignOut(e.NewContext(req, srec)); err != nil {
			t.Fatalf("SignOut: %v", err)
		}
		return srec
	}

	first := signOut()
	if first.Code != http.StatusNoContent {
		t.Fatalf("first sign-out: %d", first.Code)
	}
	if len(sessions.byID) != 0 {
		t.Fatal("session not deleted")
	}
	if ck := respCookie(first, cookie.SessionCookie); ck == nil || ck.Value != "" {
		t.Fatal("session cookie not cleared")
	}

	// Second call is a no-op, not an error.
	second := signOut()
	if second.Code != http.StatusNoContent {
		t.Fatalf("second sign-out: %d", second.Code)
	}
}

// TestAuthLifecycleScenario walks the full journey: sign up, sign in,
// verify, sign out, then attempt a refresh against the revoked session.
func TestAuthLifecycleScenario(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	up := signUp(t, h, "a@example.com", "password123")
	if up.Code != http.StatusOK {
		t.Fatalf("sign up: %d", up.Code)
	}
	if respCookie(up, cookie.TokenCookie) == nil {
		t.Fatal("sign up set no token cookie")
	}

	in := signIn(t, h, "a@example.com", "password123")
	if in.Code != http.StatusOK {
		t.Fatalf("sign in: %d", in.Code)
	}
	token := decodeBody(t, in)["token"].(map[string]any)["token"].(string)
	sessCookie := respCookie(in, cookie.SessionCookie)

	req, vrec := jsonRequest(http.MethodPost, "/api/auth/verify", fmt.Sprintf(`{"token":%q}`, token))
	if err := h.Verify(e.NewContext(req, vrec)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if vrec.Code != http.StatusOK || decodeBody(t, vrec)["valid"] != true {
		t.Fatalf("verify: %d %s", vrec.Code, vrec.Body.String())
	}

	req, srec := jsonRequest(http.MethodDelete, "/api/auth/signout", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.SignOut(e.NewContext(req, srec)); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if srec.Code != http.StatusNoContent {
		t.Fatalf("sign out: %d", srec.Code)
	}

	// The deleted session can no longer refresh.
	req, rrec := jsonRequest(http.MethodPost, "/api/auth/refresh", "")
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookie, Value: sessCookie.Value})
	if err := h.Refresh(e.NewContext(req, rrec)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rrec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after sign-out: %d, want 401", rrec.Code)
	}
}
