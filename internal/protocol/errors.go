package protocol

import "errors"

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrUnknownType  = errors.New("unknown frame type")
)
