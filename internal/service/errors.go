package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/secondchance/internal/domain/user"
)

// Caller-input failures. Recoverable; surfaced to the caller as typed rejections.
var (
	ErrDuplicateEmail     = user.ErrDuplicateEmail
	ErrUserNotFound       = user.ErrNotFound
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingIdentifier  = errors.New("missing user identifier")
)

// Infrastructure failures. Always wrapped around the underlying cause.
var (
	ErrHashing = errors.New("password hashing failed")
	ErrStore   = errors.New("credential store failure")
	ErrToken   = errors.New("token issuance failed")
)

type FieldViolation struct {
	Field string
	Rule  string
	Param string
}

// ValidationError lists every rule a profile update broke. Nothing is written when it is returned.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Param != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", v.Field, v.Rule, v.Param))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", v.Field, v.Rule))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Kind returns a stable label for err, used in logs and metrics.
func Kind(err error) string {
	var vErr *ValidationError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrMissingIdentifier):
		return "missing_identifier"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrHashing):
		return "hashing"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrToken):
		return "token"
	default:
		return "internal"
	}
}

// IsInputError reports whether err was caused by caller input rather than infrastructure.
func IsInputError(err error) bool {
	switch Kind(err) {
	case "duplicate_email", "user_not_found", "invalid_credentials", "missing_identifier", "validation":
		return true
	}
	return false
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}
