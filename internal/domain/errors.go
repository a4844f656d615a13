package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrJobTerminal   = errors.New("job already terminal")
	ErrJobActive     = errors.New("job still active")
	ErrNoCredentials = errors.New("provider credentials missing")
)
