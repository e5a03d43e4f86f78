package mediaengine

import "errors"

// Sentinel errors surfaced by the adapter. internal/roomcore maps these
// onto the machine error codes of spec.md §6.2.
var (
	ErrAlreadyConnected = errors.New("mediaengine: transport already connected")
	ErrNotConnected      = errors.New("mediaengine: transport not connected")
	ErrCannotConsume     = errors.New("mediaengine: remote capabilities cannot consume producer")
	ErrUnknownProducer   = errors.New("mediaengine: unknown producer")
	ErrUnknownTransport  = errors.New("mediaengine: unknown transport")
	ErrWorkerNotRunning  = errors.New("mediaengine: worker not running")
)
