package table

import "errors"

var (
	ErrTableClosed   = errors.New("table is closed")
	ErrSessionPaused = errors.New("table session is paused")
	ErrUnknownEvent  = errors.New("unknown table event")
)
