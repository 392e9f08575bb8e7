package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// LoadPricesParquet replaces the price history with the contents of a parquet file that
// has asset, time, close and volume columns.
func (s *Store) LoadPricesParquet(ctx context.Context, path string) (int64, error) {
	s.logger.Debug("Loading prices", zap.String("path", path))

	var loaded int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM prices`); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to clear prices", err)
		}

		// read_parquet does not take bound parameters
		query := fmt.Sprintf(`
			INSERT INTO prices
			SELECT asset, CAST(time AS TIMESTAMP), CAST(close AS DOUBLE), CAST(volume AS DOUBLE)
			FROM read_parquet(%s)
		`, quoteLiteral(path))

		res, err := tx.ExecContext(ctx, query)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to load prices from %s", path)
		}

		loaded, _ = res.RowsAffected()

		return nil
	})

	return loaded, err
}

// InsertPrices appends bars to the price history. A bar for an existing (asset, day)
// fails the whole batch.
func (s *Store) InsertPrices(ctx context.Context, bars []types.PriceBar) error {
	return s.writePrices(ctx, `INSERT INTO prices (asset, time, close, volume) VALUES (?, ?, ?, ?)`, bars)
}

// UpsertPrices writes bars, replacing any stored bar for the same (asset, day).
func (s *Store) UpsertPrices(ctx context.Context, bars []types.PriceBar) error {
	return s.writePrices(ctx, `INSERT OR REPLACE INTO prices (asset, time, close, volume) VALUES (?, ?, ?, ?)`, bars)
}

func (s *Store) writePrices(ctx context.Context, statement string, bars []types.PriceBar) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, statement)
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare price insert", err)
		}
		defer stmt.Close()

		for _, bar := range bars {
			if _, err := stmt.ExecContext(ctx, bar.Asset, bar.Time.UTC(), bar.Close, bar.Volume); err != nil {
				return errors.Wrapf(errors.ErrCodeDuplicateKey, err, "failed to insert price for %s at %s", bar.Asset, bar.Time)
			}
		}

		return nil
	})
}

// ReadPrices returns the daily bars in [start, end], ordered by asset then time.
func (s *Store) ReadPrices(ctx context.Context, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error) {
	query := s.sq.Select("asset", "time", "close", "COALESCE(volume, 0)").From("prices")

	if start.IsSome() {
		query = query.Where("time >= ?", start.Unwrap())
	}

	if end.IsSome() {
		query = query.Where("time <= ?", end.Unwrap())
	}

	sqlStr, args, err := query.OrderBy("asset ASC", "time ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query prices", err)
	}
	defer rows.Close()

	bars := make([]types.PriceBar, 0)

	for rows.Next() {
		var bar types.PriceBar
		if err := rows.Scan(&bar.Asset, &bar.Time, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan price", err)
		}

		bar.Time = bar.Time.UTC()
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate prices", err)
	}

	return bars, nil
}
