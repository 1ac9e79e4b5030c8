package service

import "errors"

var (
	// ErrAuthentication means no usable session or provider token exists for the user.
	ErrAuthentication = errors.New("authentication required")

	ErrInvalidInput = errors.New("invalid input")

	// ErrRepositoryClaimed means another user already connected the repository.
	ErrRepositoryClaimed = errors.New("repository already connected by another user")

	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
)
