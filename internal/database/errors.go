package database

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmpty         = errors.New("empty")
	ErrCorruptStore  = errors.New("corrupt store")
	ErrPersistFailed = errors.New("persist failed")
)
