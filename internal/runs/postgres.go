package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/val-protocol/val-verify/internal/verifier"
	"go.uber.org/zap"
)

// Postgres persists verification runs to a PostgreSQL database.
// Schema: migrations/001_verification_runs.up.sql. The full report is stored
// as jsonb; verdict, record count and incompleteness are extracted into
// columns for querying.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a Postgres run store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Save implements Repository.
func (p *Postgres) Save(ctx context.Context, run *Run) error {
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if _, err := p.pool.Exec(ctx,
		`INSERT INTO verification_runs
		   (id, agent_id, network, verdict, record_count, incomplete, report, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   verdict = EXCLUDED.verdict, record_count = EXCLUDED.record_count,
		   incomplete = EXCLUDED.incomplete, report = EXCLUDED.report,
		   finished_at = EXCLUDED.finished_at`,
		run.ID, run.AgentID, run.Network,
		string(run.Report.Verdict), run.Report.RecordCount, run.Report.Incomplete,
		reportJSON, run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert verification run: %w", err)
	}

	p.logger.Debug("verification run saved",
		zap.String("run_id", run.ID.String()),
		zap.String("agent_id", run.AgentID),
		zap.String("verdict", string(run.Report.Verdict)),
	)
	return nil
}

// Get implements Repository.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, agent_id, network, report, started_at, finished_at
		 FROM verification_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get verification run %s: %w", id, err)
	}
	return run, nil
}

// ListByAgent implements Repository.
func (p *Postgres) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Run, error) {
	q := `SELECT id, agent_id, network, report, started_at, finished_at
	      FROM verification_runs`
	args := []any{}
	if agentID != "" {
		q += ` WHERE agent_id = $1`
		args = append(args, agentID)
	}
	q += ` ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list verification runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Delete implements Repository.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM verification_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete verification run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	var reportJSON []byte
	if err := row.Scan(&run.ID, &run.AgentID, &run.Network, &reportJSON, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	run.Report = &verifier.Report{}
	if err := json.Unmarshal(reportJSON, run.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return run, nil
}
