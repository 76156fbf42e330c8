package envelope_test

import (
	"encoding/json"
	"testing"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := json.Marshal(envelope.RequestData{
		TransactionID: "tx-1",
		Module:        "echo",
		Action:        "echo",
		Params:        json.RawMessage(`{"message":"hi"}`),
		NotifyOutcome: true,
	})
	require.NoError(t, err)

	env := envelope.Envelope{
		ID:         "req-1",
		Version:    "1",
		Expires:    "2026-08-02T00:00:00Z",
		Sender:     "cth://client01/agent",
		Endpoints:  []string{"cth://server"},
		Hops:       []envelope.Hop{},
		DataSchema: envelope.SchemaBlockingRequest,
		Data:       data,
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var roundTripped envelope.Envelope
	require.NoError(t, json.Unmarshal(raw, &roundTripped))
	require.Equal(t, env.ID, roundTripped.ID)
	require.Equal(t, env.DataSchema, roundTripped.DataSchema)

	var reqData envelope.RequestData
	require.NoError(t, json.Unmarshal(roundTripped.Data, &reqData))
	require.Equal(t, "echo", reqData.Module)
	require.True(t, reqData.NotifyOutcome)
}
