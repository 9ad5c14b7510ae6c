package zipindex

import "errors"

var (
	// ErrFormat reports a container whose end record or central directory
	// cannot be parsed consistently.
	ErrFormat = errors.New("zipindex: malformed container")

	// ErrZip64 reports a container that needs ZIP64 structures.
	ErrZip64 = errors.New("zipindex: zip64 containers are not supported")
)
