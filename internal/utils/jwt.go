package utils // package utils provides helper functions for token creation and hashing

import (
	"errors" // sentinel error for uniform verification failures
	"time"   // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is the single failure value returned by Verify.  Malformed
// input, a bad signature, an expired token and a wrong issuer all collapse
// into this one outcome so that callers cannot be used as an oracle for
// which check failed.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the decoded result of a successful verification.  It carries
// exactly the claims every cooperating service agrees on; nothing else from
// the payload is exposed.
type Identity struct {
	UserID uint64 // the "userId" claim
	Email  string // the "email" claim
}

// SignedToken represents a signed HS256 token along with its expiry.  The
// Token field contains the serialized three-segment string.  Tokens are
// carried in the Authorization header by API clients and in the SSO cookie
// by browsers.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenService signs and verifies the bearer tokens shared across every
// service on the cookie domain.  The claim names, their casing and the
// issuer string are a wire contract: all verifying services must use
// identical values or SSO silently breaks.  The service is stateless; both
// operations are pure functions of the input and this configuration.
type TokenService struct {
	secret []byte        // shared HMAC secret, the single trust root
	issuer string        // value pinned into and required of the "iss" claim
	ttl    time.Duration // lifetime applied to newly signed tokens
}

// NewTokenService builds a TokenService from the configured secret, issuer
// and token lifetime.
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Sign builds and signs an HS256 token for a user.  The payload carries
// userId, email, iat, exp and iss; exp is iat plus the configured lifetime.
func (s *TokenService) Sign(userID uint64, email string) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	// MapClaims keeps the exact field names under our control; typed claim
	// structs would re-map them through json tags.
	claims := jwt.MapClaims{
		"userId": userID,
		"email":  email,
		"iat":    now.Unix(),
		"exp":    exp.Unix(),
		"iss":    s.issuer,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// Verify checks the signature, the expiry and the issuer of a received
// token and returns the embedded identity.  The jwt library compares the
// HMAC in constant time.  Every failure path returns ErrInvalidToken.
func (s *TokenService) Verify(raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject any token not signed with HMAC before touching the secret.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),     // "iss" must equal the configured issuer
		jwt.WithExpirationRequired(), // a token without "exp" is invalid
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	// JSON numbers decode as float64; a string userId would mean a foreign
	// token shape and is rejected like any other malformed input.
	idVal, ok := claims["userId"].(float64)
	if !ok || idVal < 1 {
		return Identity{}, ErrInvalidToken
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: uint64(idVal), Email: email}, nil
}
