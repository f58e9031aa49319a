// Package store persists analysis runs. Two backends are supported: a
// local SQLite file for single-operator use and Postgres for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/riskintel-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Selected     string             `json:"selected,omitempty"`
	DecisionType model.DecisionType `json:"decision_type,omitempty"`
	Since        time.Time          `json:"since,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	SaveRun(ctx context.Context, run *model.Run) error
	SaveRuns(ctx context.Context, runs []model.Run) (int64, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the backend named by driver: "sqlite" or "postgres".
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
