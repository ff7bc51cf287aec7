package interfaces

import "errors"

// Repository errors shared by every storage backend
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrDuplicate = errors.New("duplicate")
)
