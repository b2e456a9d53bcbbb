package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrRoleExists         = errors.New("role already exists")
	ErrSystemRole         = errors.New("system roles cannot be deleted")
	ErrPrivilegeNotFound  = errors.New("privilege not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrConflict           = errors.New("already exists")
	ErrForbidden          = errors.New("requires a superuser")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
