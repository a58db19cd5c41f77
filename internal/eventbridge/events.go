package eventbridge

import (
	"context"
	"time"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/pipeline"
)

// ProtocolVersion identifies the bridge contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// Pipeline is the slice of the orchestrator the bridge drives.
type Pipeline interface {
	Snapshot() pipeline.State
	RunInteractive(ctx context.Context, input borrower.Input) (pipeline.State, error)
}

// Watcher is notified of every accepted input edit. staleness.Controller
// satisfies it.
type Watcher interface {
	Observe(prev, next borrower.Input) bool
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Subscribers   int    `json:"subscribers"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type inputRequest struct {
	Field borrower.Field `json:"field"`
	Value string         `json:"value"`
}

type inputResponse struct {
	Input borrower.Input `json:"input"`
	// Armed reports that the edit scheduled a background re-run.
	Armed bool `json:"armed"`
}

type runResponse struct {
	State   pipeline.State         `json:"state"`
	Failure *pipeline.StageFailure `json:"failure,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Elapsed time.Duration          `json:"elapsed_ns"`
}

type errorResponse struct {
	Error string `json:"error"`
}
