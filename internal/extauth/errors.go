package extauth

import (
	"errors"
	"fmt"
)

var (
	ErrExternalAccountNotLinked = errors.New("user has no linked external account")
	ErrEmptyAccessToken         = errors.New("identity provider returned an empty access token")
)

// ExternalServiceError is a failed credential exchange with the external
// identity provider. It never invalidates the caller's own session.
type ExternalServiceError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *ExternalServiceError) Error() string {
	msg := "external service error"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
