package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoEmptyString is returned when a credential value is empty.
var ErrNoEmptyString = goerrors.New("value must not be an empty string", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword is the generic credential failure. It never
// says whether the email or the password was wrong.
var ErrMismatchedHashAndPassword = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("INVALID_CREDENTIALS")

// ErrTooManyLoginAttempts is returned while a principal is cooling down
// after repeated credential failures.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOO_MANY_ATTEMPTS")

// ErrTokenRejected covers every refresh token failure: absent, expired,
// revoked, or already rotated. Callers treat it as an authentication
// failure without learning which condition tripped.
var ErrTokenRejected = goerrors.New("invalid or expired refresh token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_REJECTED")

// ErrCodeRejected covers every reset code failure: absent, expired,
// already used, or email mismatch.
var ErrCodeRejected = goerrors.New("invalid or expired reset code", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("CODE_REJECTED")

// ErrDuplicateAccount is returned when registering an email that already
// has an account.
var ErrDuplicateAccount = goerrors.New("user with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("DUPLICATE_ACCOUNT")

// ErrMissingDefaultRole means the role table was never seeded; this is a
// deployment problem, not a user problem.
var ErrMissingDefaultRole = goerrors.New("default role not found, seed the roles table", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("MISSING_DEFAULT_ROLE")

// ErrMissingSigningKey aborts construction of the token issuer. Signing
// problems are configuration fatal, never per request.
var ErrMissingSigningKey = goerrors.New("signing key is missing or invalid", goerrors.CategoryInternal).
	WithTextCode("MISSING_SIGNING_KEY")

// ErrTokenExpired is returned when an access token fails validation on exp.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for access tokens that do not parse or
// carry an unexpected signing method.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_MALFORMED")

// ErrUnableToDecodeSession is returned when valid looking claims cannot be
// mapped to a session.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// TextCodeTokenExpired labels expiry failures for API consumers.
const TextCodeTokenExpired = "TOKEN_EXPIRED"

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
