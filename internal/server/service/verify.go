// Package service orchestrates verification runs: fetch, decode, verify,
// persist.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/val-protocol/val-verify/internal/mirror"
	"github.com/val-protocol/val-verify/internal/runs"
	"github.com/val-protocol/val-verify/internal/verifier"
	"go.uber.org/zap"
)

// VerifyService runs the fetch → decode → verify pipeline and stores the
// resulting runs. The engine itself is stateless; concurrent calls are safe
// and share nothing beyond the store.
type VerifyService struct {
	fetcher mirror.Fetcher
	store   runs.Repository
	network string
	logger  *zap.Logger
}

// NewVerifyService creates a VerifyService.
func NewVerifyService(fetcher mirror.Fetcher, store runs.Repository, network string, logger *zap.Logger) *VerifyService {
	return &VerifyService{fetcher: fetcher, store: store, network: network, logger: logger}
}

// VerifyAgent fetches an agent's full attestation log and verifies it.
//
// Fetch failures abort before the verifier is invoked and surface as the
// returned error (a *mirror.FetchError after retries). A fetch cancelled via
// ctx verifies the partial snapshot best-effort, with the report marked
// incomplete. limit > 0 caps the number of fetched messages.
func (s *VerifyService) VerifyAgent(ctx context.Context, agentID string, limit int) (*runs.Run, error) {
	started := time.Now().UTC()

	msgs, incomplete, err := mirror.FetchAll(ctx, s.fetcher, agentID, limit)
	if err != nil {
		return nil, err
	}

	report := verifier.Run(verifier.BuildSnapshot(agentID, msgs))
	report.Incomplete = incomplete

	run := &runs.Run{
		ID:         uuid.New(),
		AgentID:    agentID,
		Network:    s.network,
		Report:     report,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}

	if err := s.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	s.logger.Info("verification run completed",
		zap.String("run_id", run.ID.String()),
		zap.String("agent_id", agentID),
		zap.String("verdict", string(report.Verdict)),
		zap.Int("records", report.RecordCount),
		zap.Int("issues", len(report.Issues)),
		zap.Bool("incomplete", report.Incomplete),
	)
	return run, nil
}

// VerifySnapshot verifies caller-supplied raw messages without fetching or
// persisting anything — offline verification of an already-retrieved log.
func (s *VerifyService) VerifySnapshot(agentID string, msgs []mirror.RawTopicMessage) *verifier.Report {
	return verifier.Run(verifier.BuildSnapshot(agentID, msgs))
}

// GetRun returns a stored run by ID.
func (s *VerifyService) GetRun(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	return s.store.Get(ctx, id)
}

// ListRuns returns stored runs, optionally filtered by agent, newest first.
func (s *VerifyService) ListRuns(ctx context.Context, agentID string, limit int) ([]*runs.Run, error) {
	return s.store.ListByAgent(ctx, agentID, limit)
}

// DeleteRun removes a stored run.
func (s *VerifyService) DeleteRun(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}
