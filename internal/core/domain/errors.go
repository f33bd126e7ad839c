package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrConflict           = errors.New("conflict")
	ErrTransientStore     = errors.New("transient store error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")
)

// Document errors
var (
	ErrRender          = errors.New("document could not be rendered")
	ErrImmutableRecord = errors.New("document records are append-only")
)

// Role errors
var (
	ErrSystemRole = errors.New("system roles cannot be deleted")
)
