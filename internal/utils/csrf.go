package utils

import "crypto/subtle"

// Anti-forgery tokens follow the double-submit pattern: the same random
// value is placed in a cookie and echoed into the rendered form as a hidden
// field.  A state-changing submission is accepted only when both values are
// present and byte-equal, which a forging third-party site cannot arrange
// because it can read neither.

// NewCSRFToken generates a fresh random anti-forgery token.
func NewCSRFToken() (string, error) {
	return RandomHex(32) // 32 bytes -> 64 hex chars
}

// VerifyCSRF compares the cookie-bound token against the submitted one in
// constant time.  Absence of either value fails closed.
func VerifyCSRF(cookieToken, submittedToken string) bool {
	if cookieToken == "" || submittedToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submittedToken)) == 1
}
