// Package envelope defines the wire format shared by every message that
// crosses the bus: the routing headers, the opaque data payload, and
// the debug side-channel (§3, §6 of the spec).
package envelope

import (
	"encoding/json"
	"time"
)

// Sender is the capability the request processor and job executor need
// from the connection supervisor: compose and send an outgoing
// envelope, without knowing anything about the underlying transport.
// This replaces the "callback lambda capturing this" pattern the
// original implementation used (§9): callers hold a narrow interface
// with a lifetime bound to the supervisor, instead of a raw connection
// handle.
type Sender interface {
	Send(endpoints []string, dataSchema string, timeout time.Duration, data any, debug []DebugChunk) error
}

// Message-type tokens used as data_schema / outgoing message-type
// values (§6).
const (
	SchemaNetworkMessage      = "http://puppetlabs.com/network_message"
	SchemaLogin               = "http://puppetlabs.com/loginschema"
	SchemaBlockingRequest     = "http://puppetlabs.com/rpc_blocking_request_schema"
	SchemaNonBlockingRequest  = "http://puppetlabs.com/rpc_non_blocking_request_schema"
	SchemaBlockingResponse    = "http://puppetlabs.com/rpc_blocking_response_schema"
	SchemaProvisionalResponse = "http://puppetlabs.com/rpc_provisional_response_schema"
	SchemaNonBlockingResponse = "http://puppetlabs.com/rpc_non_blocking_response_schema"
	SchemaRPCError            = "http://puppetlabs.com/rpc_error_schema"
)

// Hop is a single broker-appended trace entry.
type Hop struct {
	Server string `json:"server"`
	Time   string `json:"time"`
	Stage  string `json:"stage"`
}

// Envelope is the top-level message: routing headers plus an opaque
// data payload conforming to DataSchema.
type Envelope struct {
	ID         string          `json:"id"`
	Version    string          `json:"version"`
	Expires    string          `json:"expires"`
	Sender     string          `json:"sender"`
	Endpoints  []string        `json:"endpoints"`
	Hops       []Hop           `json:"hops"`
	DataSchema string          `json:"data_schema"`
	Data       json.RawMessage `json:"data"`
}

// DebugChunk is an opaque diagnostic blob the broker may attach
// alongside the envelope. Debug chunks are transport-level side-cars,
// not envelope fields.
type DebugChunk struct {
	SchemaURI string          `json:"schema"`
	Data      json.RawMessage `json:"data"`
}

// ParsedChunks separates envelope headers, the primary data object, and
// debug chunks, mirroring CthunClient::ParsedChunks in the original
// implementation.
type ParsedChunks struct {
	Envelope        Envelope
	Data            json.RawMessage
	Debug           []DebugChunk
	NumInvalidDebug int
}

// RequestData is the `data` shape for an inbound CNC request (§6).
type RequestData struct {
	TransactionID string          `json:"transaction_id"`
	Module        string          `json:"module"`
	Action        string          `json:"action"`
	Params        json.RawMessage `json:"params"`
	NotifyOutcome bool            `json:"notify_outcome,omitempty"`
}

// BlockingResponseData is the `data` shape for a blocking response.
type BlockingResponseData struct {
	TransactionID string          `json:"transaction_id"`
	Results       json.RawMessage `json:"results"`
}

// ProvisionalResponseData is the `data` shape for a provisional
// response sent immediately for every non-blocking request.
type ProvisionalResponseData struct {
	TransactionID string `json:"transaction_id"`
	JobID         string `json:"job_id"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// NonBlockingResponseData is the `data` shape for the final response of
// a completed non-blocking job.
type NonBlockingResponseData struct {
	TransactionID string          `json:"transaction_id"`
	JobID         string          `json:"job_id"`
	Results       json.RawMessage `json:"results"`
}

// RPCErrorData is the `data` shape for an RPC-error message.
type RPCErrorData struct {
	TransactionID string `json:"transaction_id"`
	ID            string `json:"id"`
	Description   string `json:"description"`
}
