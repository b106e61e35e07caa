package rbac

import "errors"

var (
	ErrInvalidInput = errors.New("rbac: invalid input")
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: resource conflict")
	ErrUnauthorized = errors.New("rbac: unauthorized")
)
