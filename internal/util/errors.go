package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrMissingInput indicates an input file the run cannot do without is absent
	ErrMissingInput = errors.New("missing required input")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrToolMissing indicates an external executable is not on PATH
	ErrToolMissing = errors.New("external tool not found")

	// ErrCorrupt indicates a file is corrupt or unreadable
	ErrCorrupt = errors.New("corrupt file")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")
)
