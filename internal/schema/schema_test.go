package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/agentic/rpc-agent/internal/schema"
	"github.com/stretchr/testify/require"
)

func validEnvelope(t *testing.T, dataSchema string, data any) []byte {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	env := envelope.Envelope{
		ID:         "req-1",
		Version:    "1",
		Expires:    "2026-08-02T00:00:00Z",
		Sender:     "cth://client01/agent",
		Endpoints:  []string{"cth://server"},
		Hops:       []envelope.Hop{},
		DataSchema: dataSchema,
		Data:       payload,
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestParseAndValidateRoundTrip(t *testing.T) {
	raw := validEnvelope(t, envelope.SchemaNonBlockingRequest, envelope.RequestData{
		TransactionID: "tx-1",
		Module:        "ping",
		Action:        "ping",
		NotifyOutcome: true,
	})

	chunks, err := schema.ParseAndValidate(raw)
	require.NoError(t, err)
	require.Equal(t, "req-1", chunks.Envelope.ID)
	require.Equal(t, envelope.SchemaNonBlockingRequest, chunks.Envelope.DataSchema)
	require.Empty(t, chunks.Debug)
	require.Zero(t, chunks.NumInvalidDebug)

	var reqData envelope.RequestData
	require.NoError(t, json.Unmarshal(chunks.Data, &reqData))
	require.Equal(t, "ping", reqData.Module)
	require.True(t, reqData.NotifyOutcome)
}

func TestParseAndValidateRejectsMissingEnvelopeField(t *testing.T) {
	_, err := schema.ParseAndValidate([]byte(`{"id":"x","version":"1"}`))
	require.Error(t, err)
}

func TestParseAndValidateRejectsNonJSON(t *testing.T) {
	_, err := schema.ParseAndValidate([]byte(`not json at all`))
	require.Error(t, err)
}

func TestParseAndValidateRejectsMissingRequestFields(t *testing.T) {
	raw := validEnvelope(t, envelope.SchemaBlockingRequest, map[string]string{"module": "echo"})
	_, err := schema.ParseAndValidate(raw)
	require.Error(t, err)
}

func TestParseAndValidateExtractsDebugChunks(t *testing.T) {
	raw := validEnvelope(t, envelope.SchemaBlockingRequest, envelope.RequestData{
		TransactionID: "tx-2",
		Module:        "echo",
		Action:        "echo",
	})

	withDebug, err := sjsonSetDebug(raw)
	require.NoError(t, err)

	chunks, err := schema.ParseAndValidate(withDebug)
	require.NoError(t, err)
	require.Len(t, chunks.Debug, 1)
	require.Equal(t, "http://puppetlabs.com/debug_schema", chunks.Debug[0].SchemaURI)
	require.Zero(t, chunks.NumInvalidDebug)
}

func TestValidateDataDefaultRequiresObject(t *testing.T) {
	require.NoError(t, schema.ValidateData("urn:custom:thing", json.RawMessage(`{"a":1}`)))
	require.Error(t, schema.ValidateData("urn:custom:thing", json.RawMessage(`[1,2,3]`)))
}

func sjsonSetDebug(raw []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["debug"] = json.RawMessage(`[{"schema":"http://puppetlabs.com/debug_schema","data":{"hop":1}}]`)
	return json.Marshal(m)
}
