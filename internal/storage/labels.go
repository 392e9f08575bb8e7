package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

var labelColumns = features.LabelColumns()

// WriteLabels upserts labels in one transaction. Callers decide which labels may be
// replaced (see labels.Reconcile); this method only guarantees all-or-nothing.
func (s *Store) WriteLabels(ctx context.Context, labels []types.Label) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		del, err := tx.PrepareContext(ctx, `DELETE FROM labels WHERE asset = ? AND ts = ?`)
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare label delete", err)
		}
		defer del.Close()

		insertSQL, _, err := s.sq.Insert("labels").Columns(labelColumns...).Values(make([]any, len(labelColumns))...).ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build label insert", err)
		}

		ins, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare label insert", err)
		}
		defer ins.Close()

		for _, label := range labels {
			key := label.Key()
			if _, err := del.ExecContext(ctx, key.Asset, key.Day); err != nil {
				return errors.Wrap(errors.ErrCodeWriteFailed, "failed to delete label", err)
			}

			if _, err := ins.ExecContext(ctx, labelArgs(label)...); err != nil {
				return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert label for %s", key.Asset)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Wrote labels", zap.Int("count", len(labels)))

	return nil
}

// ReadLabels returns stored labels in [start, end], ordered by time then asset.
func (s *Store) ReadLabels(ctx context.Context, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Label, error) {
	query := s.sq.Select(labelColumns...).From("labels")

	if start.IsSome() {
		query = query.Where("ts >= ?", types.Day(start.Unwrap()))
	}

	if end.IsSome() {
		query = query.Where("ts <= ?", types.Day(end.Unwrap()))
	}

	sqlStr, args, err := query.OrderBy("ts ASC", "asset ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build label query", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query labels", err)
	}
	defer rows.Close()

	labels := make([]types.Label, 0)

	for rows.Next() {
		label, err := scanLabel(rows.Scan, nil)
		if err != nil {
			return nil, err
		}

		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate labels", err)
	}

	return labels, nil
}

func labelArgs(label types.Label) []any {
	args := []any{label.Asset, types.Day(label.Time), label.Close}

	for i := range label.ForwardReturns {
		args = append(args, nullFloat(label.ForwardReturns[i]))
	}

	for i := range label.Classes {
		args = append(args, sql.NullInt16{Int16: int16(label.Classes[i].Unwrap()), Valid: label.Classes[i].IsSome()})
	}

	return append(args, nullFloat(label.Volatility7d), nullFloat(label.Volatility30d))
}

// scanLabel scans the label columns followed by any extra destinations.
func scanLabel(scan func(dest ...any) error, extra []any) (types.Label, error) {
	var (
		label   types.Label
		returns [types.HorizonCount]sql.NullFloat64
		classes [types.HorizonCount]sql.NullInt16
		vol7    sql.NullFloat64
		vol30   sql.NullFloat64
	)

	dest := []any{&label.Asset, &label.Time, &label.Close}
	for i := range returns {
		dest = append(dest, &returns[i])
	}

	for i := range classes {
		dest = append(dest, &classes[i])
	}

	dest = append(dest, &vol7, &vol30)
	dest = append(dest, extra...)

	if err := scan(dest...); err != nil {
		return types.Label{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan label", err)
	}

	label.Time = label.Time.UTC()
	for i := range returns {
		label.ForwardReturns[i] = fromNullFloat(returns[i])
		if classes[i].Valid {
			label.Classes[i] = optional.Some(types.Direction(classes[i].Int16))
		}
	}

	label.Volatility7d = fromNullFloat(vol7)
	label.Volatility30d = fromNullFloat(vol30)

	return label, nil
}
