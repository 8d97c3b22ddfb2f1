package pbd

import "errors"

var (
	// ErrInvalidDt indicates a non-positive or non-finite substep duration.
	ErrInvalidDt = errors.New("pbd: substep dt must be positive and finite")

	// ErrInvalidGravity indicates a NaN or infinite gravity vector.
	ErrInvalidGravity = errors.New("pbd: gravity must be finite")

	// ErrInvalidOptions indicates initializer options that cannot produce a
	// valid group.
	ErrInvalidOptions = errors.New("pbd: invalid init options")
)
