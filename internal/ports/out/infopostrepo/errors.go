package infopostrepo

import "errors"

var (
	ErrNotFound       = errors.New("info post not found")
	ErrAlreadyExists  = errors.New("info post already exists")
	ErrAuthorNotFound = errors.New("info post author not found")
)
