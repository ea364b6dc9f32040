package shader

import "errors"

var (
	// ErrUnsupported is returned for configurations the generators cannot express.
	ErrUnsupported = errors.New("shader: unsupported configuration")

	// ErrCancelled is returned by LoadDiskCache when the cancel flag was set.
	ErrCancelled = errors.New("shader: disk cache load cancelled")

	// ErrCorruptCache is returned for malformed disk cache files.
	ErrCorruptCache = errors.New("shader: corrupt disk cache")
)
