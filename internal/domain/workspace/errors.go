package workspace

import "errors"

var (
	ErrNotFound      = errors.New("file not found")
	ErrEmptyName     = errors.New("file name cannot be empty")
	ErrLastOfKind    = errors.New("cannot delete the last file of its kind")
	ErrUnknownKind   = errors.New("unknown file kind")
	ErrBinaryContent = errors.New("file content is not text")
)
