package common

import "errors"

// Base errors shared by all repositories. Per-entity sentinels are built
// with the constructors below so callers can branch on the kind
// (errors.Is(err, common.ErrNotFound)) without naming the entity.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

type kindError struct {
	msg  string
	base error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.base }

// NotFound returns a sentinel that reports msg and matches ErrNotFound.
func NotFound(msg string) error {
	return &kindError{msg: msg, base: ErrNotFound}
}

// AlreadyExists returns a sentinel that reports msg and matches
// ErrAlreadyExists.
func AlreadyExists(msg string) error {
	return &kindError{msg: msg, base: ErrAlreadyExists}
}

// InvalidInput returns a sentinel that reports msg and matches
// ErrInvalidInput.
func InvalidInput(msg string) error {
	return &kindError{msg: msg, base: ErrInvalidInput}
}
