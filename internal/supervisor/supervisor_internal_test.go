package supervisor

import (
	"encoding/json"
	"testing"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/stretchr/testify/require"
)

func TestWrapDebugInjectsSideChannelArray(t *testing.T) {
	env := envelope.Envelope{
		ID:         "req-1",
		DataSchema: envelope.SchemaBlockingResponse,
		Data:       json.RawMessage(`{"transaction_id":"tx-1","results":{}}`),
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	out, err := wrapDebug(raw, []envelope.DebugChunk{
		{SchemaURI: "http://puppetlabs.com/debug_schema", Data: json.RawMessage(`{"hop":1}`)},
	})
	require.NoError(t, err)
	require.True(t, json.Valid(out))

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Contains(t, decoded, "debug")

	var debugArr []envelope.DebugChunk
	require.NoError(t, json.Unmarshal(decoded["debug"], &debugArr))
	require.Len(t, debugArr, 1)
	require.Equal(t, "http://puppetlabs.com/debug_schema", debugArr[0].SchemaURI)
}

func TestIdleTooLongFalseBeforeFirstMessage(t *testing.T) {
	s := &Supervisor{}
	require.False(t, s.idleTooLong())
}
