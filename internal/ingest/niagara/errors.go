package niagara

import "errors"

// Parser errors. Granular parse misses are absorbed as empty/zero values;
// these sentinels cover only the conditions that are allowed to surface.
var (
	// ErrUnreadable indicates the input could not be processed as a
	// platform export at all. This is the single hard failure mode of
	// Parse — individual malformed lines or missing sections never error.
	ErrUnreadable = errors.New("platform file is unreadable")

	// ErrUnknownShape indicates a stored record matched none of the
	// known historical storage shapes.
	ErrUnknownShape = errors.New("stored platform record has unknown shape")

	// ErrFileTooLarge indicates an upload exceeded MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)
