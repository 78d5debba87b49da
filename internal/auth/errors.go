package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrKeyMismatch          = errors.New("private and public keys do not match")
)

// AuthenticationError means the caller could not be identified: the token is
// missing, malformed, expired, lacks a required claim, or names an unknown or
// disabled user. Reason is for logs only and must not reach clients.
// Subject and UserID are set when the caller could be partially identified.
type AuthenticationError struct {
	Reason  string
	Subject string
	UserID  uint
}

func (e *AuthenticationError) Error() string {
	return "could not validate credentials: " + e.Reason
}

func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{Reason: reason}
}

// InsufficientPermissionError means the caller is authenticated but its token
// carries none of the scopes the operation requires.
type InsufficientPermissionError struct {
	Required []PermissionScope
}

func (e *InsufficientPermissionError) Error() string {
	return "not enough permissions for this api"
}

func NewInsufficientPermissionError(required []PermissionScope) *InsufficientPermissionError {
	return &InsufficientPermissionError{Required: required}
}

// ConfigurationError reports a persisted security scope that has no
// counterpart in the PermissionScope enumeration.
type ConfigurationError struct {
	ScopeID uint
	Name    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("security scope %d (%q) not found in the PermissionScope enumeration; "+
		"the enumeration must match the scopes defined in the database", e.ScopeID, e.Name)
}

func newSubjectAuthenticationError(reason, subject string, userID uint) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Subject: subject, UserID: userID}
}

func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

func IsInsufficientPermissionError(err error) bool {
	var permErr *InsufficientPermissionError
	return errors.As(err, &permErr)
}
