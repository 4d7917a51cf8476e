package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMissingCredential = errors.New("replicate api token is not configured")
	ErrRunActive         = errors.New("a batch run is already active")
	ErrUnknownProfile    = errors.New("unknown processing profile")
)
