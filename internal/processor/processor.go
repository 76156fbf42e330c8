// Package processor implements the request processor (C5): it turns a
// validated, dispatch-ready request into either a synchronous blocking
// response or a spooled, asynchronously-executed job plus an immediate
// provisional response. Grounded on
// RequestProcessor::processBlockingRequest/processNonBlockingRequest in
// the original implementation (§4.5, §9's wrapDebug note).
package processor

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/agentic/rpc-agent/internal/executor"
	"github.com/agentic/rpc-agent/internal/module"
	"github.com/agentic/rpc-agent/internal/spool"
	"github.com/google/uuid"
)

// Processor wires the job executor, spool store, and outbound sender
// together to turn one inbound request into zero or
// more outbound messages.
type Processor struct {
	executor   *executor.Executor
	spool      *spool.Store
	sender     envelope.Sender
	msgTimeout time.Duration
}

// New constructs a Processor.
func New(exec *executor.Executor, spoolStore *spool.Store, sender envelope.Sender, msgTimeout time.Duration) *Processor {
	return &Processor{executor: exec, spool: spoolStore, sender: sender, msgTimeout: msgTimeout}
}

// ProcessBlockingRequest executes the action synchronously and sends
// exactly one response: a blocking response on success, an RPC error
// on failure (§4.5 "blocking" branch).
func (p *Processor) ProcessBlockingRequest(mod module.Module, actionName string, chunks envelope.ParsedChunks) {
	var reqData envelope.RequestData
	if err := json.Unmarshal(chunks.Data, &reqData); err != nil {
		log.Printf("processor: malformed request data in blocking request %s: %v", chunks.Envelope.ID, err)
		return
	}

	if chunks.NumInvalidDebug > 0 {
		log.Printf("processor: request %s carried %d malformed debug chunk(s)", chunks.Envelope.ID, chunks.NumInvalidDebug)
	}

	requester := chunks.Envelope.Sender
	requestID := chunks.Envelope.ID

	outcome, execErr := mod.ExecuteAction(context.Background(), actionName, reqData.Params)

	if execErr != nil {
		errData := envelope.RPCErrorData{
			TransactionID: reqData.TransactionID,
			ID:            requestID,
			Description:   execErr.Error(),
		}
		if err := p.sender.Send([]string{requester}, envelope.SchemaRPCError, p.msgTimeout, errData, chunks.Debug); err != nil {
			log.Printf("processor: failed to send RPC error for blocking request %s by %s: %v", requestID, requester, err)
		}
		return
	}

	respData := envelope.BlockingResponseData{
		TransactionID: reqData.TransactionID,
		Results:       outcome.Results,
	}
	if err := p.sender.Send([]string{requester}, envelope.SchemaBlockingResponse, p.msgTimeout, respData, chunks.Debug); err != nil {
		log.Printf("processor: failed to send blocking response for request %s by %s: %v", requestID, requester, err)
	}
}

// ProcessNonBlockingRequest mints a job ID, creates its spool
// directory, attempts to dispatch the action to the executor, and
// sends a provisional response reflecting whether dispatch succeeded
// (§4.5 "non-blocking" branch). The job's eventual outcome, if any, is
// sent later by the executor itself, not by this method.
func (p *Processor) ProcessNonBlockingRequest(mod module.Module, actionName string, chunks envelope.ParsedChunks) {
	var reqData envelope.RequestData
	if err := json.Unmarshal(chunks.Data, &reqData); err != nil {
		log.Printf("processor: malformed request data in non-blocking request %s: %v", chunks.Envelope.ID, err)
		return
	}

	if chunks.NumInvalidDebug > 0 {
		log.Printf("processor: request %s carried %d malformed debug chunk(s)", chunks.Envelope.ID, chunks.NumInvalidDebug)
	}

	requester := chunks.Envelope.Sender
	requestID := chunks.Envelope.ID
	jobID := uuid.NewString()

	provisional := envelope.ProvisionalResponseData{
		TransactionID: reqData.TransactionID,
		JobID:         jobID,
		Success:       true,
	}

	jobDir, err := p.spool.CreateJobDir(jobID)
	if err != nil {
		log.Printf("processor: failed to create spool directory for job %s: %v", jobID, err)
		provisional.Success = false
		provisional.Error = err.Error()
		p.sendProvisional(requester, requestID, provisional, chunks.Debug)
		return
	}

	if err := p.executor.Dispatch(mod, actionName, chunks, jobID, jobDir); err != nil {
		log.Printf("processor: failed to dispatch job %s: %v", jobID, err)
		provisional.Success = false
		provisional.Error = err.Error()
	}

	p.sendProvisional(requester, requestID, provisional, chunks.Debug)
}

func (p *Processor) sendProvisional(requester, requestID string, data envelope.ProvisionalResponseData, debug []envelope.DebugChunk) {
	if err := p.sender.Send([]string{requester}, envelope.SchemaProvisionalResponse, p.msgTimeout, data, debug); err != nil {
		log.Printf("processor: failed to send provisional response for request %s by %s, job %s: %v",
			requestID, requester, data.JobID, err)
	}
}
