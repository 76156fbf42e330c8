package processor_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/agentic/rpc-agent/internal/executor"
	"github.com/agentic/rpc-agent/internal/module"
	"github.com/agentic/rpc-agent/internal/processor"
	"github.com/agentic/rpc-agent/internal/spool"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	fn func(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error)
}

func (f fakeModule) Name() string { return "widget" }
func (f fakeModule) Actions() map[string]module.ActionDescriptor {
	return map[string]module.ActionDescriptor{"do": {Name: "do"}}
}
func (f fakeModule) ExecuteAction(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error) {
	return f.fn(ctx, action, params)
}

type recordedSend struct {
	dataSchema string
	data       any
}

type fakeSender struct {
	mu    sync.Mutex
	sends []recordedSend
}

func (f *fakeSender) Send(endpoints []string, dataSchema string, timeout time.Duration, data any, debug []envelope.DebugChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recordedSend{dataSchema: dataSchema, data: data})
	return nil
}

func (f *fakeSender) all() []recordedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedSend, len(f.sends))
	copy(out, f.sends)
	return out
}

func chunksFor(t *testing.T, notify bool) envelope.ParsedChunks {
	t.Helper()
	reqData := envelope.RequestData{TransactionID: "tx-1", Module: "widget", Action: "do", NotifyOutcome: notify}
	raw, err := json.Marshal(reqData)
	require.NoError(t, err)
	return envelope.ParsedChunks{
		Envelope: envelope.Envelope{ID: "req-1", Sender: "cth://client01/agent"},
		Data:     raw,
	}
}

func TestProcessBlockingRequestSendsBlockingResponseOnSuccess(t *testing.T) {
	sender := &fakeSender{}
	store, err := spool.New(t.TempDir())
	require.NoError(t, err)
	exec := executor.New(2, store, sender, time.Second)
	proc := processor.New(exec, store, sender, time.Second)

	mod := fakeModule{fn: func(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error) {
		return module.Outcome{Type: module.Internal, Results: json.RawMessage(`{"ok":true}`)}, nil
	}}

	proc.ProcessBlockingRequest(mod, "do", chunksFor(t, false))

	sends := sender.all()
	require.Len(t, sends, 1)
	require.Equal(t, envelope.SchemaBlockingResponse, sends[0].dataSchema)
}

func TestProcessBlockingRequestSendsRPCErrorOnFailure(t *testing.T) {
	sender := &fakeSender{}
	store, err := spool.New(t.TempDir())
	require.NoError(t, err)
	exec := executor.New(2, store, sender, time.Second)
	proc := processor.New(exec, store, sender, time.Second)

	mod := fakeModule{fn: func(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error) {
		return module.Outcome{}, errBoom
	}}

	proc.ProcessBlockingRequest(mod, "do", chunksFor(t, false))

	sends := sender.all()
	require.Len(t, sends, 1)
	require.Equal(t, envelope.SchemaRPCError, sends[0].dataSchema)
}

func TestProcessNonBlockingRequestSendsProvisionalResponse(t *testing.T) {
	sender := &fakeSender{}
	store, err := spool.New(t.TempDir())
	require.NoError(t, err)
	exec := executor.New(2, store, sender, time.Second)
	proc := processor.New(exec, store, sender, time.Second)

	mod := fakeModule{fn: func(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error) {
		return module.Outcome{Type: module.Internal, Results: json.RawMessage(`{}`)}, nil
	}}

	proc.ProcessNonBlockingRequest(mod, "do", chunksFor(t, true))
	require.NoError(t, exec.Shutdown())

	sends := sender.all()
	require.Len(t, sends, 2)
	require.Equal(t, envelope.SchemaProvisionalResponse, sends[0].dataSchema)
	provisional, ok := sends[0].data.(envelope.ProvisionalResponseData)
	require.True(t, ok)
	require.True(t, provisional.Success)
	require.NotEmpty(t, provisional.JobID)
}

var errBoom = &boomErr{}

type boomErr struct{}

func (e *boomErr) Error() string { return "boom" }
