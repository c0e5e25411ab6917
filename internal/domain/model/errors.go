package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidPosition   = errors.New("invalid position")
	ErrInvalidFormat     = errors.New("invalid match format")
	ErrInvalidAttributes = errors.New("attribute out of range")
)
