package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMaxTablesReached     = errors.New("maximum tables reached")
	ErrTableNotFound        = errors.New("table not found")
	ErrPeerOverflow         = errors.New("peer outbound queue overflowed")
)
