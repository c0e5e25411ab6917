package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict means optimistic concurrency retries were exhausted.
	ErrConflict = errors.New("concurrent modification")
	// ErrUnavailable marks transient backend failures; callers may retry.
	ErrUnavailable  = errors.New("store unavailable")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidPatch = errors.New("invalid player patch")
)

// StoreError wraps a failure with the store operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("repository: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns err wrapped in a StoreError for op, or nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConflict)
}
