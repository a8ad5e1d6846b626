package claims

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned when claims cannot be built.
var (
	// ErrMissingField is returned when the issuer or subject is empty.
	ErrMissingField = errors.New("claims: required field missing")

	// ErrInvalidWindow is returned when not-before is after expiry.
	ErrInvalidWindow = errors.New("claims: not-before is after expiry")
)

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func invalidWindow(notBefore, expires time.Time) error {
	return fmt.Errorf("%w: nbf %s > exp %s", ErrInvalidWindow,
		notBefore.UTC().Format(time.RFC3339Nano),
		expires.UTC().Format(time.RFC3339Nano))
}
