package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrNoIdentity        = errors.New("acting user identity unresolved")
	ErrNoWashesLeft      = errors.New("no washes left on quota")
	ErrBadInput          = errors.New("invalid order input")
)
