package common

import "errors"

var (
	ErrNotFound        = errors.New("requested item not found")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrTooLarge        = errors.New("request body too large")
)
