// Package agenterr names the error taxonomy of §7: fatal, connection,
// message, validation, request, request-processing, and file errors.
// Each is a distinct type so callers can tell them apart with errors.As
// instead of matching strings, and so the connection supervisor (the
// only component allowed to turn an error into process termination)
// can recognize a Fatal without inspecting every call site.
package agenterr

import "fmt"

// Fatal aborts the agent process: bad TLS config, an unwritable spool
// root, a failed initial connect, or a login message that fails schema
// validation.
type Fatal struct {
	Op  string
	Err error
}

func (e *Fatal) Error() string { return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err) }
func (e *Fatal) Unwrap() error { return e.Err }

// Connection is a transport-layer send/receive failure. Recovered by
// the reconnect loop or swallowed for an individual send.
type Connection struct {
	Op  string
	Err error
}

func (e *Connection) Error() string { return fmt.Sprintf("connection: %s: %v", e.Op, e.Err) }
func (e *Connection) Unwrap() error { return e.Err }

// Message is a transport ping/send failure, logged at warning and not
// propagated further.
type Message struct {
	Op  string
	Err error
}

func (e *Message) Error() string { return fmt.Sprintf("message: %s: %v", e.Op, e.Err) }
func (e *Message) Unwrap() error { return e.Err }

// Validation is a schema or registry-lookup failure on an inbound
// message; it becomes an RPC-error response, or the message is dropped
// if no responder can be identified.
type Validation struct {
	Reason string
}

func (e *Validation) Error() string { return fmt.Sprintf("validation: %s", e.Reason) }

// Request is an action-level failure raised by a module. It is turned
// into an RPC-error response and recorded in the spool.
type Request struct {
	Reason string
}

func (e *Request) Error() string { return fmt.Sprintf("request: %s", e.Reason) }

// RequestProcessing signals an inability to dispatch a non-blocking
// request (spool dir creation failed, worker could not be started). It
// is reported in the provisional response with success=false.
type RequestProcessing struct {
	Reason string
}

func (e *RequestProcessing) Error() string { return fmt.Sprintf("request-processing: %s", e.Reason) }

// File is a spool I/O failure. Logged; for status writes it is
// best-effort and not fatal to the agent.
type File struct {
	Op  string
	Err error
}

func (e *File) Error() string { return fmt.Sprintf("file: %s: %v", e.Op, e.Err) }
func (e *File) Unwrap() error { return e.Err }
