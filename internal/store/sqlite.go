package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	task             TEXT NOT NULL,
	selected         TEXT NOT NULL,
	reason           TEXT NOT NULL,
	decision_type    TEXT,
	primary_result   TEXT,
	secondary_result TEXT,
	decision         TEXT,
	comparison       TEXT,
	total_cost       REAL NOT NULL DEFAULT 0,
	latency          REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_selected ON runs(selected);
CREATE INDEX IF NOT EXISTS idx_runs_decision_type ON runs(decision_type);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, task, selected, reason, decision_type, primary_result,
		 secondary_result, decision, comparison, total_cost, latency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, cols.task, run.Selected, run.Reason, cols.decisionType,
		cols.primary, cols.secondary, cols.decision, cols.comparison,
		run.TotalCost, run.Latency, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) SaveRuns(ctx context.Context, runs []model.Run) (int64, error) {
	if len(runs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin batch insert")
	}
	defer tx.Rollback()

	var saved int64
	for i := range runs {
		run := &runs[i]
		cols, err := encodeRun(run)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO runs (id, task, selected, reason, decision_type, primary_result,
			 secondary_result, decision, comparison, total_cost, latency, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, cols.task, run.Selected, run.Reason, cols.decisionType,
			cols.primary, cols.secondary, cols.decision, cols.comparison,
			run.TotalCost, run.Latency, run.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: batch insert run %s", run.ID)
		}
		saved++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit batch insert")
	}
	return saved, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, task, selected, reason, primary_result, secondary_result,
		 decision, comparison, total_cost, latency, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, task, selected, reason, primary_result, secondary_result,
	 decision, comparison, total_cost, latency, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Selected != "" {
		query += ` AND selected = ?`
		args = append(args, filter.Selected)
	}
	if filter.DecisionType != "" {
		query += ` AND decision_type = ?`
		args = append(args, string(filter.DecisionType))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
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
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// runColumns holds the JSON-encoded fields of a run ready for insertion.
type runColumns struct {
	task         string
	decisionType sql.NullString
	primary      sql.NullString
	secondary    sql.NullString
	decision     sql.NullString
	comparison   sql.NullString
}

func encodeRun(run *model.Run) (*runColumns, error) {
	taskJSON, err := json.Marshal(run.Task)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal task")
	}
	cols := &runColumns{task: string(taskJSON)}

	if run.Primary != nil {
		if cols.primary, err = marshalNullable(run.Primary); err != nil {
			return nil, err
		}
	}
	if run.Secondary != nil {
		if cols.secondary, err = marshalNullable(run.Secondary); err != nil {
			return nil, err
		}
	}
	if run.Decision != nil {
		cols.decisionType = sql.NullString{String: string(run.Decision.Type), Valid: true}
		if cols.decision, err = marshalNullable(run.Decision); err != nil {
			return nil, err
		}
	}
	if run.Comparison != nil {
		if cols.comparison, err = marshalNullable(run.Comparison); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, eris.Wrap(err, "store: marshal run field")
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var taskJSON string
	var primaryJSON, secondaryJSON, decisionJSON, comparisonJSON sql.NullString
	var createdAt time.Time

	err := row.Scan(&r.ID, &taskJSON, &r.Selected, &r.Reason,
		&primaryJSON, &secondaryJSON, &decisionJSON, &comparisonJSON,
		&r.TotalCost, &r.Latency, &createdAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}
	r.CreatedAt = createdAt.UTC()

	if err := json.Unmarshal([]byte(taskJSON), &r.Task); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal task")
	}
	if primaryJSON.Valid {
		r.Primary = &model.ProviderResult{}
		if err := json.Unmarshal([]byte(primaryJSON.String), r.Primary); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal primary result")
		}
	}
	if secondaryJSON.Valid {
		r.Secondary = &model.ProviderResult{}
		if err := json.Unmarshal([]byte(secondaryJSON.String), r.Secondary); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal secondary result")
		}
	}
	if decisionJSON.Valid {
		r.Decision = &model.EnsembleDecision{}
		if err := json.Unmarshal([]byte(decisionJSON.String), r.Decision); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal decision")
		}
	}
	if comparisonJSON.Valid {
		r.Comparison = &model.Comparison{}
		if err := json.Unmarshal([]byte(comparisonJSON.String), r.Comparison); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal comparison")
		}
	}
	return &r, nil
}
