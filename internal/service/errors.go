package service

import "errors"

// ErrNotFound marks lookups for content items that do not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest marks requests rejected before any work is done.
var ErrInvalidRequest = errors.New("invalid request")
