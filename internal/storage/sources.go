package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// RegisterSource exposes an upstream parquet feature table as a view named src_<name>.
func (s *Store) RegisterSource(ctx context.Context, source config.SourceConfig) error {
	view := tableName("src", source.Name)
	s.logger.Debug("Registering feature source", zap.String("view", view), zap.String("path", source.Path))

	query := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(view), quoteLiteral(source.Path))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to register source %s", source.Name)
	}

	return nil
}

// WriteFeatureTable materialises a feature table as src_<name>, replacing any previous
// contents. Asset-scoped tables have an asset column; all tables have a time column.
func (s *Store) WriteFeatureTable(ctx context.Context, table types.FeatureTable) error {
	name := tableName("src", table.Name)

	cols := make([]string, 0, len(table.Columns)+2)
	defs := make([]string, 0, len(table.Columns)+2)

	if table.AssetScoped {
		cols = append(cols, "asset")
		defs = append(defs, "asset TEXT NOT NULL")
	}

	cols = append(cols, "time")
	defs = append(defs, "time TIMESTAMP NOT NULL")

	for _, c := range table.Columns {
		cols = append(cols, quoteIdent(c))
		defs = append(defs, quoteIdent(c)+" DOUBLE")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP VIEW IF EXISTS %s`, quoteIdent(name))); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to drop source view", err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, quoteIdent(name), strings.Join(defs, ", "))); err != nil {
			return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to create source table %s", name)
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(name), strings.Join(cols, ", "), placeholders))
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare source insert", err)
		}
		defer stmt.Close()

		for _, row := range table.Rows {
			args := make([]any, 0, len(cols))
			if table.AssetScoped {
				args = append(args, row.Asset)
			}

			args = append(args, row.Time.UTC())
			for _, v := range row.Values {
				args = append(args, nullFloat(v))
			}

			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert row into %s", name)
			}
		}

		return nil
	})
}

// ReadFeatureTable loads the named source with the requested columns.
func (s *Store) ReadFeatureTable(ctx context.Context, name string, assetScoped bool, columns []string) (types.FeatureTable, error) {
	selected := make([]string, 0, len(columns)+2)
	if assetScoped {
		selected = append(selected, "CAST(asset AS TEXT)")
	}

	selected = append(selected, "CAST(time AS TIMESTAMP)")
	for _, c := range columns {
		selected = append(selected, fmt.Sprintf("CAST(%s AS DOUBLE)", quoteIdent(c)))
	}

	query := s.sq.Select(selected...).From(quoteIdent(tableName("src", name)))
	if assetScoped {
		query = query.OrderBy("2 ASC", "1 ASC")
	} else {
		query = query.OrderBy("1 ASC")
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return types.FeatureTable{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build source query", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return types.FeatureTable{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read source %s", name)
	}
	defer rows.Close()

	table := types.FeatureTable{
		Name:        name,
		AssetScoped: assetScoped,
		Columns:     columns,
		Rows:        make([]types.FeatureRow, 0),
	}

	for rows.Next() {
		var row types.FeatureRow

		values := make([]sql.NullFloat64, len(columns))
		dest := make([]any, 0, len(columns)+2)

		if assetScoped {
			dest = append(dest, &row.Asset)
		}

		dest = append(dest, &row.Time)
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return types.FeatureTable{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to scan source %s", name)
		}

		row.Time = row.Time.UTC()
		row.Values = make([]optionalFloat, len(values))
		for i, v := range values {
			row.Values[i] = fromNullFloat(v)
		}

		table.Rows = append(table.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return types.FeatureTable{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to iterate source %s", name)
	}

	return table, nil
}
