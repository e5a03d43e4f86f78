package roomcore

import "fmt"

// Code is one of the machine error codes enumerated in spec.md §6.2.
type Code string

const (
	CodeNotJoined         Code = "not-joined"
	CodeAlreadyJoined     Code = "already-joined"
	CodeUnknownRoom       Code = "unknown-room"
	CodeUnknownTransport  Code = "unknown-transport"
	CodeUnknownProducer   Code = "unknown-producer"
	CodeUnknownConsumer   Code = "unknown-consumer"
	CodeWrongDirection    Code = "wrong-direction"
	CodeNotConnected      Code = "not-connected"
	CodeAlreadyConnected  Code = "already-connected"
	CodeDuplicateKind     Code = "duplicate-kind"
	CodeCannotConsume     Code = "cannot-consume"
	CodeNotOwner          Code = "not-owner"
	CodeEngineFailure     Code = "engine-failure"
	CodeTimeout           Code = "timeout"
)

// Error is the typed error every handler returns on a failed
// precondition or adapter call (spec.md §7). Details is the
// human-readable string carried alongside Code in the wire payload.
type Error struct {
	Code    Code
	Details string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Details: fmt.Sprintf(format, args...)}
}
