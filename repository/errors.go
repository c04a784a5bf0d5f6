package repository

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound signals a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUser signals a username/email uniqueness violation.
	ErrDuplicateUser = errors.New("username or email already exists")
	// ErrSelfFollow signals an attempt to follow oneself.
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// isDuplicateEntry reports whether err is a MySQL unique-key violation.
func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
