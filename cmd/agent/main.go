package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic/rpc-agent/internal/config"
	"github.com/agentic/rpc-agent/internal/executor"
	"github.com/agentic/rpc-agent/internal/processor"
	"github.com/agentic/rpc-agent/internal/registry"
	"github.com/agentic/rpc-agent/internal/spool"
	"github.com/agentic/rpc-agent/internal/supervisor"
)

func main() {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		log.Fatalf("agent: failed to create log directory: %v", err)
	}
	logFile, err := os.OpenFile("logs/agent.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("agent: failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("agent: %v", err)
	}

	spoolStore, err := spool.New(cfg.SpoolDir)
	if err != nil {
		log.Fatalf("agent: %v", err)
	}

	reg := registry.Load(cfg.ExternalModDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Supervisor is created before Executor/Processor because it is the
	// envelope.Sender they both depend on (§9's capability-interface
	// note): the supervisor itself is passed to both as their sender, and
	// the circular-looking dependency is resolved by wiring the processor
	// into the supervisor after construction.
	sup, err := supervisor.New(cfg, reg, nil)
	if err != nil {
		log.Fatalf("agent: %v", err)
	}

	exec := executor.New(cfg.WorkerLimit, spoolStore, sup, cfg.MsgTimeout)
	proc := processor.New(exec, spoolStore, sup, cfg.MsgTimeout)
	sup.SetProcessor(proc)

	log.Println("agent: starting connection supervisor")
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("agent: supervisor exited: %v", err)
	}

	log.Println("agent: shutting down, waiting for in-flight jobs")
	if err := exec.Shutdown(); err != nil {
		log.Printf("agent: error during job executor shutdown: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	log.Println("agent: shutdown complete")
}
