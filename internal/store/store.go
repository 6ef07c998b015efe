// Package store persists delivery outcomes to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "delivery_outcomes"

var outcomeColumns = []string{"run_id", "row_number", "number", "name", "outcome", "detail", "recorded_at"}

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is a schemas.ResultSink backed by one PostgreSQL table.
type Store struct {
	pool  DBPool
	table pgx.Identifier
	log   *zap.Logger
}

var _ schemas.ResultSink = (*Store)(nil)

// New creates a new store instance and verifies the connection. table may be
// schema-qualified.
func New(ctx context.Context, pool DBPool, table string, logger *zap.Logger) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool:  pool,
		table: pgx.Identifier(strings.Split(table, ".")),
		log:   logger.Named("store"),
	}, nil
}

// Connect opens a pool for url and returns a Store over it together with a
// function that closes the pool.
func Connect(ctx context.Context, url, table string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, table, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            run_id text NOT NULL,
            row_number integer NOT NULL,
            number text NOT NULL,
            name text NOT NULL,
            outcome text NOT NULL,
            detail text NOT NULL DEFAULT '',
            recorded_at timestamptz NOT NULL,
            PRIMARY KEY (run_id, row_number)
        );
    `, s.table.Sanitize())
}

// Migrate creates the outcome table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

// Persist copies every record of result in a single transaction.
func (s *Store) Persist(ctx context.Context, result *schemas.BatchResult) error {
	if result == nil || result.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]interface{}, 0, result.Len())
	for _, rec := range result.Records {
		rows = append(rows, []interface{}{
			result.RunID,
			rec.Contact.Row,
			rec.Contact.Number(),
			rec.Contact.Name,
			rec.Outcome.Kind.String(),
			rec.Outcome.Reason,
			rec.Timestamp.UTC(),
		})
	}

	copied, err := tx.CopyFrom(ctx, s.table, outcomeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("mismatch in copied outcome count: expected %d, got %d", len(rows), copied)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Outcomes stored.", zap.String("run_id", result.RunID), zap.Int64("rows", copied))
	return nil
}

func (s *Store) countsSQL() string {
	return fmt.Sprintf(`
        SELECT outcome, count(*)
        FROM %s
        WHERE run_id = $1
        GROUP BY outcome;
    `, s.table.Sanitize())
}

// Counts returns the stored number of outcomes per kind for a run.
func (s *Store) Counts(ctx context.Context, runID string) (map[schemas.OutcomeKind]int, error) {
	rows, err := s.pool.Query(ctx, s.countsSQL(), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[schemas.OutcomeKind]int, len(schemas.OutcomeKinds))
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		kind, err := schemas.ParseOutcomeKind(outcome)
		if err != nil {
			return nil, err
		}
		counts[kind] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return counts, nil
}
