package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// Store is the shared DuckDB label/feature store used by every batch job.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// Open opens (or creates) the DuckDB database at path and makes sure every table exists.
// Use ":memory:" for an in-process database.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageInitFailed, "failed to open DuckDB", err)
	}

	store := &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.Initialize(context.Background()); err != nil {
		db.Close()

		return nil, err
	}

	log.Debug("Opened store", zap.String("path", path))

	return store, nil
}

// Initialize creates the store tables if they do not exist.
func (s *Store) Initialize(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(errors.ErrCodeStorageInitFailed, err, "failed to run schema statement: %s", firstLine(stmt))
		}
	}

	return nil
}

// DB exposes the connection pool for components that own their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit transaction", err)
	}

	return nil
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal, used where DuckDB does not accept parameters
// (file paths in read_parquet and COPY).
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}

	return stmt
}

type optionalFloat = optional.Option[float64]

func nullFloat(o optional.Option[float64]) sql.NullFloat64 {
	return sql.NullFloat64{Float64: o.Unwrap(), Valid: o.IsSome()}
}

func fromNullFloat(n sql.NullFloat64) optional.Option[float64] {
	if !n.Valid {
		return optional.None[float64]()
	}

	return optional.Some(n.Float64)
}

func tableName(prefix, name string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}

		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}

		return '_'
	}, name))
}
