package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// MatrixView is the stable name readers query; it always points at one complete version.
const MatrixView = "feature_matrix"

// MatrixVersion describes one persisted feature matrix snapshot.
type MatrixVersion struct {
	Version    int64
	SnapshotID string
	Table      string
	Checksum   string
	Columns    []string
	RowCount   int64
	BuiltAt    time.Time
}

// SwapMatrix writes the snapshot into a new versioned table and repoints the
// feature_matrix view at it in the same transaction, so a reader sees either the old
// or the new complete matrix. Versions older than retain are dropped afterwards.
// The returned snapshot carries the assigned version, id and build time.
func (s *Store) SwapMatrix(ctx context.Context, snapshot *features.Snapshot, retain int) (*features.Snapshot, error) {
	published := *snapshot
	published.ID = uuid.NewString()
	published.BuiltAt = time.Now().UTC()

	columnsJSON, err := json.Marshal(snapshot.Columns)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode matrix columns", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM matrix_versions`).Scan(&current); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read matrix version", err)
		}

		published.Version = current + 1
		table := fmt.Sprintf("%s_v%d", MatrixView, published.Version)

		if err := s.createMatrixTable(ctx, tx, table, snapshot); err != nil {
			return err
		}

		insert := s.sq.Insert("matrix_versions").
			Columns("version", "snapshot_id", "table_name", "checksum", "columns", "row_count", "built_at").
			Values(published.Version, published.ID, table, snapshot.Checksum, string(columnsJSON), len(snapshot.Rows), published.BuiltAt)

		sqlStr, args, err := insert.ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build matrix version insert", err)
		}

		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to record matrix version", err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM %s`, MatrixView, quoteIdent(table))); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to swap matrix view", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Swapped feature matrix",
		zap.Int64("version", published.Version),
		zap.Int("rows", len(published.Rows)),
		zap.Int("columns", len(published.Columns)),
		zap.String("checksum", published.Checksum),
	)

	if err := s.pruneMatrices(ctx, published.Version, retain); err != nil {
		// the swap already committed; stale tables only cost disk
		s.logger.Warn("Failed to prune old matrix versions", zap.Error(err))
	}

	return &published, nil
}

func (s *Store) createMatrixTable(ctx context.Context, tx *sql.Tx, table string, snapshot *features.Snapshot) error {
	defs := []string{
		"asset TEXT NOT NULL", "ts TIMESTAMP NOT NULL", "close DOUBLE NOT NULL",
	}

	for _, h := range types.Horizons {
		defs = append(defs, features.ForwardReturnColumn(h)+" DOUBLE")
	}

	for _, h := range types.Horizons {
		defs = append(defs, features.LabelColumn(h)+" SMALLINT")
	}

	defs = append(defs, features.ColumnVolatility7d+" DOUBLE", features.ColumnVolatility30d+" DOUBLE")

	cols := append([]string(nil), labelColumns...)
	for _, c := range snapshot.Columns {
		defs = append(defs, quoteIdent(c)+" DOUBLE")
		cols = append(cols, quoteIdent(c))
	}

	defs = append(defs, "PRIMARY KEY (asset, ts)")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to create matrix table %s", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(table), strings.Join(cols, ", "), placeholders))
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare matrix insert", err)
	}
	defer stmt.Close()

	for _, row := range snapshot.Rows {
		args := labelArgs(row.Label)
		for _, v := range row.Values {
			args = append(args, nullFloat(v))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert matrix row for %s", row.Label.Asset)
		}
	}

	return nil
}

func (s *Store) pruneMatrices(ctx context.Context, current int64, retain int) error {
	if retain < 1 {
		retain = 1
	}

	rows, err := s.db.QueryContext(ctx, `SELECT version, table_name FROM matrix_versions WHERE version <= ? ORDER BY version`, current-int64(retain))
	if err != nil {
		return err
	}

	type stale struct {
		version int64
		table   string
	}

	var drop []stale

	for rows.Next() {
		var st stale
		if err := rows.Scan(&st.version, &st.table); err != nil {
			rows.Close()

			return err
		}

		drop = append(drop, st)
	}

	rows.Close()

	for _, st := range drop {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(st.table))); err != nil {
			return err
		}

		if _, err := s.db.ExecContext(ctx, `DELETE FROM matrix_versions WHERE version = ?`, st.version); err != nil {
			return err
		}
	}

	return nil
}

// CurrentMatrix returns the newest committed matrix version.
func (s *Store) CurrentMatrix(ctx context.Context) (MatrixVersion, error) {
	var (
		mv      MatrixVersion
		columns string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT version, snapshot_id, table_name, checksum, columns, row_count, built_at
		FROM matrix_versions ORDER BY version DESC LIMIT 1
	`).Scan(&mv.Version, &mv.SnapshotID, &mv.Table, &mv.Checksum, &columns, &mv.RowCount, &mv.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MatrixVersion{}, errors.New(errors.ErrCodeSnapshotNotLoaded, "no feature matrix has been built")
	}

	if err != nil {
		return MatrixVersion{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read matrix version", err)
	}

	if err := json.Unmarshal([]byte(columns), &mv.Columns); err != nil {
		return MatrixVersion{}, errors.Wrap(errors.ErrCodeDataIntegrity, "corrupt matrix column list", err)
	}

	mv.BuiltAt = mv.BuiltAt.UTC()

	return mv, nil
}

// ReadMatrix loads the newest matrix version. The content is re-hashed and must match the
// checksum recorded at swap time.
func (s *Store) ReadMatrix(ctx context.Context) (*features.Snapshot, error) {
	mv, err := s.CurrentMatrix(ctx)
	if err != nil {
		return nil, err
	}

	cols := append([]string(nil), labelColumns...)
	for _, c := range mv.Columns {
		cols = append(cols, quoteIdent(c))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY ts ASC, asset ASC`, strings.Join(cols, ", "), quoteIdent(mv.Table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read matrix version %d", mv.Version)
	}
	defer rows.Close()

	out := make([]types.MatrixRow, 0, mv.RowCount)

	for rows.Next() {
		values := make([]sql.NullFloat64, len(mv.Columns))
		extra := make([]any, len(values))

		for i := range values {
			extra[i] = &values[i]
		}

		label, err := scanLabel(rows.Scan, extra)
		if err != nil {
			return nil, err
		}

		row := types.MatrixRow{Label: label, Values: make([]optional.Option[float64], len(values))}
		for i, v := range values {
			row.Values[i] = fromNullFloat(v)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate matrix", err)
	}

	checksum := features.Checksum(mv.Columns, out)
	if checksum != mv.Checksum {
		return nil, errors.Newf(errors.ErrCodeDataIntegrity, "matrix version %d checksum mismatch", mv.Version)
	}

	return &features.Snapshot{
		Version:  mv.Version,
		ID:       mv.SnapshotID,
		BuiltAt:  mv.BuiltAt,
		Columns:  mv.Columns,
		Rows:     out,
		Checksum: checksum,
	}, nil
}
