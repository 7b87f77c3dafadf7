package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the repository layer. Handlers translate these into
// flash+redirect for browser routes or a JSON error payload for API routes.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrAuthentication = errors.New("invalid email or password")
	ErrAuthorization  = errors.New("you do not own this resource")
	ErrTokenInvalid   = errors.New("reset token is invalid or expired")
	ErrNotFound       = errors.New("not found")
	ErrUploadRejected = errors.New("that filetype isn't allowed")
)

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// PageOutOfRangeError is returned when a listing page is past the last
// non-empty page, carrying the page the caller should redirect to.
type PageOutOfRangeError struct {
	Requested int64
	LastPage  int64
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d is out of range, last page is %d", e.Requested, e.LastPage)
}
