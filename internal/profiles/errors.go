package profiles

import "errors"

var (
	ErrBadProfile     = errors.New("invalid profile input")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrNotFound       = errors.New("profile not found")
)
