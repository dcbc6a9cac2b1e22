package invite

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound      = "INVITE_USER_NOT_FOUND"
	TextCodeDuplicateEmail    = "INVITE_DUPLICATE_EMAIL"
	TextCodeAlreadyConfirmed  = "INVITE_ALREADY_CONFIRMED"
	TextCodeProviderFailure   = "INVITE_PROVIDER_FAILURE"
	TextCodeInvalidTransition = "INVITE_INVALID_TRANSITION"
	TextCodeTokenTypeMismatch = "INVITE_TOKEN_TYPE_MISMATCH"
	TextCodeInvalidToken      = "INVITE_INVALID_TOKEN"
	TextCodeInvalidInput      = "INVITE_INVALID_INPUT"
	TextCodeUnauthorized      = "INVITE_UNAUTHORIZED"
	TextCodeForbidden         = "INVITE_FORBIDDEN"
)

// ErrUserNotFound is returned when no user matches the given id.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateEmail is returned when the email is already taken.
var ErrDuplicateEmail = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyConfirmed is returned when resending an invite to a confirmed user.
var ErrAlreadyConfirmed = goerrors.New("user has already confirmed their account", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyConfirmed).
	WithCode(goerrors.CodeBadRequest)

// ErrProviderFailure is returned when an identity provider call fails.
var ErrProviderFailure = goerrors.New("identity provider request failed", goerrors.CategoryExternal).
	WithTextCode(TextCodeProviderFailure).
	WithCode(502)

// ErrInvalidTransition is returned when a requested state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid invitation state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenTypeMismatch is returned when a recovery token reaches the invite flow or vice versa.
var ErrTokenTypeMismatch = goerrors.New("token type not accepted by this flow", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenTypeMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken is returned when an invitation or recovery token fails verification.
var ErrInvalidToken = goerrors.New("invalid or expired link", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidInput is returned when operation input fails validation.
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is returned by AdminGuard when the bearer token is missing or invalid.
var ErrUnauthorized = goerrors.New("missing or invalid admin token", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned by AdminGuard when a valid token is not allowed in.
var ErrForbidden = goerrors.New("admin access required", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// IsUserNotFound reports whether err is (or wraps) ErrUserNotFound.
func IsUserNotFound(err error) bool { return hasTextCode(err, TextCodeUserNotFound) }

// IsDuplicateEmail reports whether err is (or wraps) ErrDuplicateEmail.
func IsDuplicateEmail(err error) bool { return hasTextCode(err, TextCodeDuplicateEmail) }

// IsAlreadyConfirmed reports whether err is (or wraps) ErrAlreadyConfirmed.
func IsAlreadyConfirmed(err error) bool { return hasTextCode(err, TextCodeAlreadyConfirmed) }

// IsProviderFailure reports whether err is (or wraps) ErrProviderFailure.
func IsProviderFailure(err error) bool { return hasTextCode(err, TextCodeProviderFailure) }

// IsInvalidTransition reports whether err is (or wraps) ErrInvalidTransition.
func IsInvalidTransition(err error) bool { return hasTextCode(err, TextCodeInvalidTransition) }

// IsTokenTypeMismatch reports whether err is (or wraps) ErrTokenTypeMismatch.
func IsTokenTypeMismatch(err error) bool { return hasTextCode(err, TextCodeTokenTypeMismatch) }

// IsInvalidToken reports whether err is (or wraps) ErrInvalidToken.
func IsInvalidToken(err error) bool { return hasTextCode(err, TextCodeInvalidToken) }

// IsInvalidInput reports whether err is (or wraps) ErrInvalidInput.
func IsInvalidInput(err error) bool { return hasTextCode(err, TextCodeInvalidInput) }

// IsUnauthorized reports whether err is (or wraps) ErrUnauthorized.
func IsUnauthorized(err error) bool { return hasTextCode(err, TextCodeUnauthorized) }

// IsForbidden reports whether err is (or wraps) ErrForbidden.
func IsForbidden(err error) bool { return hasTextCode(err, TextCodeForbidden) }

// newError clones a sentinel so per-call metadata never leaks into the shared value.
func newError(base *goerrors.Error, source error, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if source != nil {
		clone.Source = source
	}
	if len(metadata) > 0 {
		clone.WithMetadata(metadata)
	}
	return clone
}

func hasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}
