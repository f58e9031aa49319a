package store

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/riskintel-cli/internal/db"
	"github.com/sells-group/riskintel-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, task, selected, reason, decision_type, primary_result,
		 secondary_result, decision, comparison, total_cost, latency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	"get_run": `SELECT id, task, selected, reason, primary_result, secondary_result,
		 decision, comparison, total_cost, latency, created_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	task             JSONB NOT NULL,
	selected         TEXT NOT NULL,
	reason           TEXT NOT NULL,
	decision_type    TEXT,
	primary_result   JSONB,
	secondary_result JSONB,
	decision         JSONB,
	comparison       JSONB,
	total_cost       DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency          DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_selected ON runs(selected);
CREATE INDEX IF NOT EXISTS idx_runs_decision_type ON runs(decision_type);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, task, selected, reason, decision_type, primary_result,
		 secondary_result, decision, comparison, total_cost, latency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, cols.task, run.Selected, run.Reason, cols.decisionType,
		cols.primary, cols.secondary, cols.decision, cols.comparison,
		run.TotalCost, run.Latency, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

// SaveRuns bulk-inserts runs with the COPY protocol.
func (s *PostgresStore) SaveRuns(ctx context.Context, runs []model.Run) (int64, error) {
	rows := make([][]any, 0, len(runs))
	for i := range runs {
		run := &runs[i]
		cols, err := encodeRun(run)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			run.ID, cols.task, run.Selected, run.Reason, cols.decisionType,
			cols.primary, cols.secondary, cols.decision, cols.comparison,
			run.TotalCost, run.Latency, run.CreatedAt.UTC(),
		})
	}
	return db.CopyFrom(ctx, s.pool, "runs", []string{
		"id", "task", "selected", "reason", "decision_type", "primary_result",
		"secondary_result", "decision", "comparison", "total_cost", "latency", "created_at",
	}, rows)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, task, selected, reason, primary_result, secondary_result,
		 decision, comparison, total_cost, latency, created_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, task, selected, reason, primary_result, secondary_result,
	 decision, comparison, total_cost, latency, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Selected != "" {
		args = append(args, filter.Selected)
		query += ` AND selected = $` + strconv.Itoa(len(args))
	}
	if filter.DecisionType != "" {
		args = append(args, string(filter.DecisionType))
		query += ` AND decision_type = $` + strconv.Itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
