package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNoCredential        = errors.New("no image generation credential configured")
	ErrInsufficientCredits = errors.New("insufficient credits")
)
