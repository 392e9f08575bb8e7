package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// SignalTable persists inference signals. Signals are immutable: writing a signal whose
// (asset, day, model) already exists keeps the stored one.
type SignalTable struct {
	store *Store
}

// Signals returns the signal table of the store.
func (s *Store) Signals() *SignalTable {
	return &SignalTable{store: s}
}

// Publish writes signals in one transaction.
func (t *SignalTable) Publish(ctx context.Context, signals []types.Signal) error {
	s := t.store
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insertSQL, _, err := s.sq.Insert("signals").Options("OR IGNORE").
			Columns("asset", "ts", "model_id", "score", "direction", "prob_sell", "prob_hold", "prob_buy",
				"confidence", "attribution_class", "top_features", "no_data", "created_at").
			Values(make([]any, 13)...).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build signal insert", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare signal insert", err)
		}
		defer stmt.Close()

		for _, sig := range signals {
			top, err := json.Marshal(sig.TopFeatures)
			if err != nil {
				return errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode attributions", err)
			}

			_, err = stmt.ExecContext(ctx,
				sig.Asset,
				types.Day(sig.Time),
				sig.ModelID,
				sig.Score,
				int16(sig.Direction),
				sig.Probabilities.Of(types.DirectionSell),
				sig.Probabilities.Of(types.DirectionHold),
				sig.Probabilities.Of(types.DirectionBuy),
				sig.Confidence,
				int16(sig.AttributionClass),
				string(top),
				sig.NoData,
				now,
			)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert signal for %s", sig.Asset)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Wrote signals", zap.Int("count", len(signals)))

	return nil
}

// Read returns the signals of one day, ordered by asset.
func (t *SignalTable) Read(ctx context.Context, day time.Time) ([]types.Signal, error) {
	s := t.store

	sqlStr, args, err := s.sq.Select("asset", "ts", "model_id", "score", "direction", "prob_sell", "prob_hold", "prob_buy",
		"confidence", "attribution_class", "top_features", "no_data").
		From("signals").
		Where("ts = ?", types.Day(day)).
		OrderBy("asset ASC", "model_id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build signal query", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query signals", err)
	}
	defer rows.Close()

	signals := make([]types.Signal, 0)

	for rows.Next() {
		var (
			sig       types.Signal
			direction int16
			class     int16
			top       string
		)

		err := rows.Scan(&sig.Asset, &sig.Time, &sig.ModelID, &sig.Score, &direction,
			&sig.Probabilities[0], &sig.Probabilities[1], &sig.Probabilities[2],
			&sig.Confidence, &class, &top, &sig.NoData)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan signal", err)
		}

		if err := json.Unmarshal([]byte(top), &sig.TopFeatures); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataIntegrity, "corrupt attribution list", err)
		}

		sig.Time = sig.Time.UTC()
		sig.Direction = types.Direction(direction)
		sig.AttributionClass = types.Direction(class)
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate signals", err)
	}

	return signals, nil
}
