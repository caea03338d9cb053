package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Runner applies the ledger schema with a goose provider. The SQL targets
// Postgres only; SQLite runs use model auto-migration instead.
type Runner struct {
	dir      string
	provider *goose.Provider
}

// NewRunner validates dir before building the provider so a malformed or
// float-typed money migration never reaches the database.
func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{dir: dir, provider: provider}, nil
}

// Applied describes one migration the runner executed.
type Applied struct {
	Version   int64
	Path      string
	Direction string
	Millis    int64
}

func applied(results ...*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Applied{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Millis:    r.Duration.Milliseconds(),
		})
	}
	return out
}

func (r *Runner) Up(ctx context.Context) ([]Applied, error) {
	res, err := r.provider.Up(ctx)
	if err != nil {
		return applied(res...), fmt.Errorf("goose up: %w", err)
	}
	return applied(res...), nil
}

// Down rolls back only the latest migration.
func (r *Runner) Down(ctx context.Context) ([]Applied, error) {
	res, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return applied(res), nil
}

// To moves the schema up or down to the YYYYMMDDHHMMSS version given.
func (r *Runner) To(ctx context.Context, version string) ([]Applied, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		res, err = r.provider.UpTo(ctx, target)
	default:
		res, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return applied(res...), fmt.Errorf("goose %d -> %d: %w", current, target, err)
	}
	return applied(res...), nil
}

// Pending lists the versions not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]int64, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	var pending []int64
	for _, s := range statuses {
		if s.State == goose.StatePending {
			pending = append(pending, s.Source.Version)
		}
	}
	return pending, nil
}
