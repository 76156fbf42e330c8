// Package executor implements the job executor (C4): a bounded worker
// pool that runs non-blocking actions, persists their status and
// output through the spool, and delivers outcome messages through a
// Sender. The original implementation modeled this as a named thread
// container with an exit-flag-polling reaper (§4.4, §9); here a single
// golang.org/x/sync/errgroup.Group with SetLimit plays the same role —
// TryGo either claims a slot and starts the worker or fails
// immediately, and Wait() on shutdown is the "join_all" the design
// notes ask for, with no flag or reaper goroutine needed. The pattern
// is grounded on the same library's use for bounded fan-out in
// CZERTAINLY-Seeker's internal/parallel and internal/service packages.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/agentic/rpc-agent/internal/agenterr"
	"github.com/agentic/rpc-agent/internal/envelope"
	"github.com/agentic/rpc-agent/internal/module"
	"github.com/agentic/rpc-agent/internal/spool"
	"golang.org/x/sync/errgroup"
)

// Executor runs non-blocking actions on a bounded pool of goroutines.
type Executor struct {
	pool       *errgroup.Group
	spool      *spool.Store
	sender     envelope.Sender
	msgTimeout time.Duration
}

// New creates an Executor whose pool accepts at most limit concurrent
// jobs ("Action Executer" in the original design).
func New(limit int, spoolStore *spool.Store, sender envelope.Sender, msgTimeout time.Duration) *Executor {
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &Executor{pool: g, spool: spoolStore, sender: sender, msgTimeout: msgTimeout}
}

// Dispatch attempts to start a worker for the given job. It returns a
// *agenterr.RequestProcessing error if the pool has no free slot; in
// that case no worker exists and the action has not executed (§3
// invariants).
func (e *Executor) Dispatch(mod module.Module, actionName string, chunks envelope.ParsedChunks, jobID, jobDir string) error {
	started := e.pool.TryGo(func() error {
		e.runTask(mod, actionName, chunks, jobID, jobDir)
		return nil
	})
	if !started {
		return &agenterr.RequestProcessing{Reason: "failed to start action task: worker pool exhausted"}
	}
	return nil
}

// Shutdown joins all live workers; no new work should be submitted
// after this is called.
func (e *Executor) Shutdown() error {
	return e.pool.Wait()
}

type statusRecord struct {
	Module   string `json:"module"`
	Action   string `json:"action"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Input    string `json:"input"`
}

// runTask is the action-task body of §4.4, steps 1-8. It must never
// let a panic or error escape the worker goroutine: everything is
// caught, logged, written to the spool, and turned into an outgoing
// RPC message at most once.
func (e *Executor) runTask(mod module.Module, actionName string, chunks envelope.ParsedChunks, jobID, jobDir string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("executor: recovered from panic running job %s: %v", jobID, r)
		}
	}()

	var reqData envelope.RequestData
	_ = json.Unmarshal(chunks.Data, &reqData)
	requester := chunks.Envelope.Sender
	requestID := chunks.Envelope.ID
	transactionID := reqData.TransactionID

	inputText := "none"
	if len(reqData.Params) > 0 {
		inputText = string(reqData.Params)
	}
	status := statusRecord{Module: mod.Name(), Action: actionName, Status: "running", Duration: "0 s", Input: inputText}
	e.writeStatus(jobDir, status)
	_ = e.spool.Write(jobDir, "stdout", "")
	_ = e.spool.Write(jobDir, "stderr", "")

	start := time.Now()
	outcome, execErr := func() (o module.Outcome, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &agenterr.Request{Reason: fmt.Sprintf("action panicked: %v", r)}
			}
		}()
		return mod.ExecuteAction(context.Background(), actionName, reqData.Params)
	}()
	duration := time.Since(start)

	var errMsg string
	if execErr != nil {
		errMsg = execErr.Error()
		if reqData.NotifyOutcome {
			errData := envelope.RPCErrorData{
				TransactionID: transactionID,
				ID:            requestID,
				Description:   errMsg,
			}
			if sendErr := e.sender.Send([]string{requester}, envelope.SchemaRPCError, e.msgTimeout, errData, chunks.Debug); sendErr != nil {
				log.Printf("executor: failed to send RPC error for non-blocking request %s by %s, transaction %s (no further attempts): %v",
					requestID, requester, transactionID, sendErr)
			} else {
				log.Printf("executor: replied to non-blocking request %s by %s, transaction %s, with an RPC error message",
					requestID, requester, transactionID)
			}
		}
	} else if reqData.NotifyOutcome {
		respData := envelope.NonBlockingResponseData{
			TransactionID: transactionID,
			JobID:         jobID,
			Results:       outcome.Results,
		}
		if sendErr := e.sender.Send([]string{requester}, envelope.SchemaNonBlockingResponse, e.msgTimeout, respData, chunks.Debug); sendErr != nil {
			log.Printf("executor: failed to reply to non-blocking request %s by %s, transaction %s (no further attempts): %v",
				requestID, requester, transactionID, sendErr)
		} else {
			log.Printf("executor: sent response for non-blocking request %s by %s, transaction %s", requestID, requester, transactionID)
		}
	}

	finalStatus := "completed"
	if execErr != nil {
		finalStatus = "failed"
	}
	status.Status = finalStatus
	status.Duration = fmt.Sprintf("%g s", duration.Seconds())
	e.writeStatus(jobDir, status)

	if execErr == nil {
		if outcome.Type == module.External {
			_ = e.spool.Write(jobDir, "stdout", outcome.Stdout)
			if outcome.Stderr != "" {
				_ = e.spool.Write(jobDir, "stderr", outcome.Stderr)
			}
		} else {
			_ = e.spool.Write(jobDir, "stdout", string(outcome.Results))
		}
	} else {
		_ = e.spool.Write(jobDir, "stderr", fmt.Sprintf("failed to execute '%s %s': %s", mod.Name(), actionName, errMsg))
	}
}

func (e *Executor) writeStatus(jobDir string, status statusRecord) {
	b, err := json.Marshal(status)
	if err != nil {
		log.Printf("executor: failed to marshal status for %s: %v", jobDir, err)
		return
	}
	if err := e.spool.Write(jobDir, "status", string(b)+"\n"); err != nil {
		log.Printf("executor: %v", err)
	}
}
