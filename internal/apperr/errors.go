// Package apperr defines the error taxonomy shared by the service and transport layers.
package apperr

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNotFound       = errors.New("not found")
	ErrStorageRead    = errors.New("storage read failed")
	ErrStorageWrite   = errors.New("storage write failed")
)
