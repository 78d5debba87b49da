package users

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
