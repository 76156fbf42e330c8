// Package schema validates inbound envelopes and their data payloads.
// The spec treats the JSON-Schema validator as an external collaborator
// (§1); what's left to implement is a small structural check against
// the fixed network_message shape and the handful of data_schema
// variants this agent understands (§6). gjson gives us schema-free structural access to arbitrary JSON, which is what the
// original C++ agent used valijson for: checking required fields and
// coarse types without needing a generated struct for every payload.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/tidwall/gjson"
)

// requiredEnvelopeFields are the fields network_message mandates (§6).
var requiredEnvelopeFields = []struct {
	name string
	kind gjson.Type
}{
	{"id", gjson.String},
	{"version", gjson.String},
	{"expires", gjson.String},
	{"sender", gjson.String},
	{"endpoints", gjson.JSON},
	{"hops", gjson.JSON},
	{"data_schema", gjson.String},
	{"data", gjson.JSON},
}

// ParseAndValidate parses raw bytes as a network_message envelope,
// validates its shape, validates the `data` object against the schema
// named by `data_schema`, and separates out debug chunks. It returns an
// error (wrapping *agenterr.Validation semantics at the call site) if
// the message is not valid JSON or fails the network_message schema;
// callers must drop the message in that case per §4.6.
func ParseAndValidate(raw []byte) (envelope.ParsedChunks, error) {
	if !gjson.ValidBytes(raw) {
		return envelope.ParsedChunks{}, fmt.Errorf("not valid JSON")
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return envelope.ParsedChunks{}, fmt.Errorf("envelope is not a JSON object")
	}

	for _, f := range requiredEnvelopeFields {
		v := root.Get(f.name)
		if !v.Exists() {
			return envelope.ParsedChunks{}, fmt.Errorf("network_message: missing field %q", f.name)
		}
		if f.kind == gjson.JSON {
			if !(v.IsArray() || v.IsObject()) {
				return envelope.ParsedChunks{}, fmt.Errorf("network_message: field %q has wrong type", f.name)
			}
			continue
		}
		if v.Type != f.kind {
			return envelope.ParsedChunks{}, fmt.Errorf("network_message: field %q has wrong type", f.name)
		}
	}

	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope.ParsedChunks{}, fmt.Errorf("network_message: %w", err)
	}

	if err := ValidateData(env.DataSchema, env.Data); err != nil {
		return envelope.ParsedChunks{}, fmt.Errorf("data schema: %w", err)
	}

	debug, numInvalid := parseDebugChunks(root.Get("debug"))

	return envelope.ParsedChunks{
		Envelope:        env,
		Data:            env.Data,
		Debug:           debug,
		NumInvalidDebug: numInvalid,
	}, nil
}

// ValidateData checks `data` against the schema named by schemaURI. For
// the schemas this agent understands it checks the required fields
// those data shapes carry (§6); for anything else (e.g. an external
// module's own input schema) it only requires a well-formed JSON
// object, since the core never interprets those payloads itself.
func ValidateData(schemaURI string, data json.RawMessage) error {
	if len(data) == 0 {
		return fmt.Errorf("empty data payload")
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("data is not valid JSON")
	}
	parsed := gjson.ParseBytes(data)

	switch schemaURI {
	case envelope.SchemaBlockingRequest, envelope.SchemaNonBlockingRequest:
		return requireFields(parsed, []string{"transaction_id", "module", "action"})
	case envelope.SchemaLogin:
		return requireFields(parsed, []string{"type"})
	case envelope.SchemaBlockingResponse:
		return requireFields(parsed, []string{"transaction_id", "results"})
	case envelope.SchemaProvisionalResponse:
		return requireFields(parsed, []string{"transaction_id", "job_id", "success"})
	case envelope.SchemaNonBlockingResponse:
		return requireFields(parsed, []string{"transaction_id", "job_id", "results"})
	case envelope.SchemaRPCError:
		return requireFields(parsed, []string{"transaction_id", "id", "description"})
	default:
		if !parsed.IsObject() {
			return fmt.Errorf("data for schema %q must be a JSON object", schemaURI)
		}
		return nil
	}
}

func requireFields(v gjson.Result, fields []string) error {
	if !v.IsObject() {
		return fmt.Errorf("data must be a JSON object")
	}
	for _, f := range fields {
		if !v.Get(f).Exists() {
			return fmt.Errorf("missing required field %q", f)
		}
	}
	return nil
}

func parseDebugChunks(v gjson.Result) ([]envelope.DebugChunk, int) {
	if !v.Exists() || !v.IsArray() {
		return nil, 0
	}
	var chunks []envelope.DebugChunk
	invalid := 0
	for _, item := range v.Array() {
		if !item.IsObject() {
			invalid++
			continue
		}
		schemaField := item.Get("schema")
		dataField := item.Get("data")
		if !schemaField.Exists() || !dataField.Exists() {
			invalid++
			continue
		}
		chunks = append(chunks, envelope.DebugChunk{
			SchemaURI: schemaField.String(),
			Data:      json.RawMessage(dataField.Raw),
		})
	}
	return chunks, invalid
}
