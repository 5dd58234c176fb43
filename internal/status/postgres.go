package status

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simplesurance/commitqueue/internal/cqerr"
)

const createEventsTableStmt = `
	CREATE TABLE IF NOT EXISTS commitqueue_status_events (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		issue      BIGINT NOT NULL,
		patchset   BIGINT NOT NULL,
		owner      TEXT NOT NULL,
		message    TEXT NOT NULL,
		revision   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)
`

const insertEventStmt = `
	INSERT INTO commitqueue_status_events (name, issue, patchset, owner, message, revision, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Execer is the subset of *pgxpool.Pool used by PostgresSink.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends events to a PostgreSQL table.
type PostgresSink struct {
	db Execer
}

// NewPostgresSink connects to the database at dsn and creates the events
// table if it does not exist.
// The returned close function must be called when the sink is not used
// anymore.
func NewPostgresSink(ctx context.Context, dsn string) (sink *PostgresSink, closeFn func(), err error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("creating postgresql connection pool failed: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connecting to postgresql failed: %w", err)
	}

	sink = NewPostgresSinkWithDB(pool)
	if err := sink.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return sink, pool.Close, nil
}

func NewPostgresSinkWithDB(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the events table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createEventsTableStmt); err != nil {
		return fmt.Errorf("creating events table failed: %w", err)
	}

	return nil
}

func (*PostgresSink) Name() string {
	return "postgres"
}

func (s *PostgresSink) Send(ctx context.Context, ev *Event) error {
	_, err := s.db.Exec(
		ctx,
		insertEventStmt,
		ev.Name, ev.Issue, ev.Patchset, ev.Owner, ev.Message, ev.Revision, ev.Timestamp,
	)
	if err != nil {
		return cqerr.Retryable(fmt.Errorf("inserting event failed: %w", err))
	}

	return nil
}
