package domain

import "errors"

var (
	// ErrFileNotFound means the session holds no reference with the given ID.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileGone means the reference exists but the stored content has
	// vanished between resolution and scan.
	ErrFileGone = errors.New("file no longer exists")

	// ErrInvalidDate means a query date bound could not be parsed. The query
	// is rejected before any scan begins.
	ErrInvalidDate = errors.New("invalid date")
)
