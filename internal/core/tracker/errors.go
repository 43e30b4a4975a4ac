package tracker

import "errors"

var (
	ErrInvalidPlacement = errors.New("placement requires a finite hit point and a non-negative half-height")
	ErrRegistryFull     = errors.New("placement registry is full")
)
