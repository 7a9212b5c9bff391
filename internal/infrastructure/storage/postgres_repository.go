package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// PostgresRepository keeps an audit trail of pipeline runs. It is
// optional: when no DSN is configured the coordinator simply runs without
// a recorder.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunRecorder = (*PostgresRepository)(nil)

// Open connects to Postgres and ensures the runs table exists.
func Open(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	repo := NewPostgresRepository(db)
	if err := repo.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepository wires an existing sql.DB.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the underlying connection pool.
func (r *PostgresRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS generation_runs (
        run_id         TEXT PRIMARY KEY,
        report_date    TEXT NOT NULL,
        status         TEXT NOT NULL,
        article_count  INTEGER NOT NULL DEFAULT 0,
        fallback_count INTEGER NOT NULL DEFAULT 0,
        source_errors  INTEGER NOT NULL DEFAULT 0,
        error          TEXT NOT NULL DEFAULT '',
        started_at     TIMESTAMPTZ NOT NULL,
        finished_at    TIMESTAMPTZ NOT NULL
    )`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure runs schema: %w", err)
	}
	return nil
}

// RecordRun upserts the outcome of one pipeline run.
func (r *PostgresRepository) RecordRun(ctx context.Context, run domain.RunRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("generation_runs").
		Columns("run_id", "report_date", "status", "article_count", "fallback_count", "source_errors", "error", "started_at", "finished_at").
		Values(run.ID, run.Date, string(run.Status), run.ArticleCount, run.FallbackCount, run.SourceErrors, run.Error, run.StartedAt, run.FinishedAt).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
            SET status = EXCLUDED.status,
                article_count = EXCLUDED.article_count,
                fallback_count = EXCLUDED.fallback_count,
                source_errors = EXCLUDED.source_errors,
                error = EXCLUDED.error,
                finished_at = EXCLUDED.finished_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	return nil
}
