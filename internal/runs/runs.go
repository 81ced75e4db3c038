// Package runs persists verification runs. Two Repository implementations
// are provided: Memory for tests and single-process deployments, Postgres for
// durable storage.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/val-protocol/val-verify/internal/verifier"
)

// ErrNotFound is returned when a run ID does not exist in the store.
var ErrNotFound = errors.New("run not found")

// Run is one stored verification run: the report plus its retrieval context.
type Run struct {
	ID         uuid.UUID        `json:"id"`
	AgentID    string           `json:"agent_id"`
	Network    string           `json:"network"`
	Report     *verifier.Report `json:"report"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Repository stores and retrieves verification runs.
type Repository interface {
	Save(ctx context.Context, run *Run) error

	Get(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListByAgent returns runs for one agent topic, most recent first.
	// agentID == "" lists across all agents. limit <= 0 means no limit.
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*Run, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
