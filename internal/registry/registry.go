package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// Registry stores trained models and tracks the single active one.
type Registry interface {
	// Register stores a model and its backtest results in one transaction and returns the new model id
	Register(ctx context.Context, record types.ModelRecord, backtests ...types.BacktestResult) (int64, error)
	// Activate makes id the only active model
	Activate(ctx context.Context, id int64) error
	// GetActive returns the active model, or an ErrCodeNoActiveModel error
	GetActive(ctx context.Context) (types.ModelRecord, error)
	// Get returns one model by id
	Get(ctx context.Context, id int64) (types.ModelRecord, error)
	// List returns every registered model ordered by id
	List(ctx context.Context) ([]types.ModelRecord, error)
	// Backtests returns the walk-forward results stored with a model
	Backtests(ctx context.Context, modelID int64) ([]types.BacktestResult, error)
	// ActivationHistory returns the activation audit trail, oldest first
	ActivationHistory(ctx context.Context) ([]types.Activation, error)
}

var modelColumns = []string{
	"model_id", "name", "family", "target_days", "features", "hyperparameters",
	"train_from", "train_to", "validation_from", "validation_to", "universe",
	"ic_1d", "ic_3d", "ic_7d", "accuracy", "sharpe", "win_rate",
	"artifact_path", "is_active", "created_at",
}

var backtestColumns = []string{
	"result_id", "model_id", "window_index", "train_from", "train_to", "validation_from", "validation_to", "universe",
	"ic_1d", "ic_3d", "ic_7d", "ic_mean", "ic_std", "icir", "ic_days",
	"accuracy", "precision_buy", "recall_buy", "f1_buy", "samples",
	"sharpe", "max_drawdown", "total_return", "win_rate", "total_trades", "trading_days", "avg_holding_days",
	"degenerate", "notes", "created_at",
}

// DuckDBRegistry is the Registry backed by tables in the shared DuckDB store.
type DuckDBRegistry struct {
	db     *sql.DB
	locker Locker
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBRegistry creates the registry tables on db if needed.
func NewDuckDBRegistry(ctx context.Context, db *sql.DB, locker Locker, log *logger.Logger) (*DuckDBRegistry, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageInitFailed, "failed to create registry schema", err)
		}
	}

	if locker == nil {
		locker = NewLocalLocker()
	}

	return &DuckDBRegistry{
		db:     db,
		locker: locker,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (r *DuckDBRegistry) Register(ctx context.Context, record types.ModelRecord, backtests ...types.BacktestResult) (int64, error) {
	if strings.TrimSpace(record.Name) == "" {
		return 0, errors.New(errors.ErrCodeMissingParameter, "model name is required")
	}

	if record.Target.Index() < 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported target horizon %d", int(record.Target))
	}

	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeRegistrationFailed, "failed to encode features", err)
	}

	hyperJSON, err := json.Marshal(record.Hyperparameters)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeRegistrationFailed, "failed to encode hyperparameters", err)
	}

	now := time.Now().UTC()

	var id int64

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM models WHERE name = ?`, record.Name).Scan(&exists); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to check model name", err)
		}

		if exists > 0 {
			return errors.Newf(errors.ErrCodeDuplicateModelName, "model %q is already registered", record.Name)
		}

		insert := r.sq.Insert("models").
			Columns(modelColumns[1:]...).
			Values(
				record.Name, string(record.Family), record.Target.Days(), string(featuresJSON), string(hyperJSON),
				record.Train.From.UTC(), record.Train.To.UTC(), record.Validation.From.UTC(), record.Validation.To.UTC(), record.Universe,
				nullFloat(record.Metrics.IC1d), nullFloat(record.Metrics.IC3d), nullFloat(record.Metrics.IC7d),
				nullFloat(record.Metrics.Accuracy), nullFloat(record.Metrics.Sharpe), nullFloat(record.Metrics.WinRate),
				record.ArtifactPath, false, now,
			).
			Suffix("RETURNING model_id")

		sqlStr, args, err := insert.ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeRegistrationFailed, "failed to build model insert", err)
		}

		if err := tx.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return errors.Wrap(errors.ErrCodeRegistrationFailed, "failed to insert model", err)
		}

		for _, bt := range backtests {
			if err := r.insertBacktest(ctx, tx, id, bt, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("Registered model",
		zap.Int64("model_id", id),
		zap.String("name", record.Name),
		zap.String("family", string(record.Family)),
		zap.Int("backtests", len(backtests)),
	)

	return id, nil
}

func (r *DuckDBRegistry) insertBacktest(ctx context.Context, tx *sql.Tx, modelID int64, bt types.BacktestResult, now time.Time) error {
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}

	if bt.CreatedAt.IsZero() {
		bt.CreatedAt = now
	}

	c, p := bt.Classification, bt.Portfolio

	sqlStr, args, err := r.sq.Insert("backtest_results").
		Columns(backtestColumns...).
		Values(
			bt.ID, modelID, bt.Window, bt.Train.From.UTC(), bt.Train.To.UTC(), bt.Validation.From.UTC(), bt.Validation.To.UTC(), bt.Universe,
			nullFloat(bt.IC1d), nullFloat(bt.IC3d), nullFloat(bt.IC7d), nullFloat(bt.ICMean), nullFloat(bt.ICStd), nullFloat(bt.ICIR), bt.ICDays,
			nullFloat(c.Accuracy), nullFloat(c.PrecisionBuy), nullFloat(c.RecallBuy), nullFloat(c.F1Buy), c.Samples,
			nullFloat(p.Sharpe), nullFloat(p.MaxDrawdown), nullFloat(p.TotalReturn), nullFloat(p.WinRate), p.TotalTrades, p.TradingDays, p.AvgHoldingDays,
			bt.Degenerate, bt.Notes, bt.CreatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRegistrationFailed, "failed to build backtest insert", err)
	}

	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeRegistrationFailed, err, "failed to insert backtest for window %d", bt.Window)
	}

	return nil
}

func (r *DuckDBRegistry) Activate(ctx context.Context, id int64) error {
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	var version int64

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM models WHERE model_id = ?`, id).Scan(&exists); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to look up model", err)
		}

		if exists == 0 {
			return errors.Newf(errors.ErrCodeModelNotFound, "model %d not found", id)
		}

		previous := optional.None[int64]()

		var prevID, prevVersion int64

		err := tx.QueryRowContext(ctx, `SELECT model_id, version FROM active_model WHERE slot = 1`).Scan(&prevID, &prevVersion)

		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read active model", err)
		default:
			previous = optional.Some(prevID)
		}

		version = prevVersion + 1
		now := time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `UPDATE models SET is_active = (model_id = ?)`, id); err != nil {
			return errors.Wrap(errors.ErrCodeActivationFailed, "failed to update active flags", err)
		}

		if previous.IsNone() {
			_, err = tx.ExecContext(ctx, `INSERT INTO active_model (slot, model_id, version, activated_at) VALUES (1, ?, ?, ?)`, id, version, now)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE active_model SET model_id = ?, version = ?, activated_at = ? WHERE slot = 1`, id, version, now)
		}

		if err != nil {
			return errors.Wrap(errors.ErrCodeActivationFailed, "failed to update active model", err)
		}

		var prev sql.NullInt64
		if previous.IsSome() {
			prev = sql.NullInt64{Int64: previous.Unwrap(), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO model_activations (version, model_id, previous_id, activated_at) VALUES (?, ?, ?, ?)`,
			version, id, prev, now); err != nil {
			return errors.Wrap(errors.ErrCodeActivationFailed, "failed to record activation", err)
		}

		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeModelNotFound) {
			r.logger.Warn("Activation of unknown model", zap.Int64("model_id", id))
		}

		return err
	}

	r.logger.Info("Activated model", zap.Int64("model_id", id), zap.Int64("version", version))

	return nil
}

func (r *DuckDBRegistry) GetActive(ctx context.Context) (types.ModelRecord, error) {
	records, err := r.queryModels(ctx, r.selectModels().Join("active_model a ON m.model_id = a.model_id"))
	if err != nil {
		return types.ModelRecord{}, err
	}

	if len(records) == 0 {
		return types.ModelRecord{}, errors.New(errors.ErrCodeNoActiveModel, "no active model")
	}

	return records[0], nil
}

func (r *DuckDBRegistry) Get(ctx context.Context, id int64) (types.ModelRecord, error) {
	records, err := r.queryModels(ctx, r.selectModels().Where("m.model_id = ?", id))
	if err != nil {
		return types.ModelRecord{}, err
	}

	if len(records) == 0 {
		return types.ModelRecord{}, errors.Newf(errors.ErrCodeModelNotFound, "model %d not found", id)
	}

	return records[0], nil
}

func (r *DuckDBRegistry) List(ctx context.Context) ([]types.ModelRecord, error) {
	return r.queryModels(ctx, r.selectModels().OrderBy("m.model_id ASC"))
}

func (r *DuckDBRegistry) selectModels() squirrel.SelectBuilder {
	cols := make([]string, len(modelColumns))
	for i, c := range modelColumns {
		cols[i] = "m." + c
	}

	return r.sq.Select(cols...).From("models m")
}

func (r *DuckDBRegistry) queryModels(ctx context.Context, query squirrel.SelectBuilder) ([]types.ModelRecord, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build model query", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query models", err)
	}
	defer rows.Close()

	records := make([]types.ModelRecord, 0)

	for rows.Next() {
		var (
			rec          types.ModelRecord
			family       string
			target       int
			featuresJSON string
			hyperJSON    string
			metrics      [6]sql.NullFloat64
		)

		err := rows.Scan(&rec.ID, &rec.Name, &family, &target, &featuresJSON, &hyperJSON,
			&rec.Train.From, &rec.Train.To, &rec.Validation.From, &rec.Validation.To, &rec.Universe,
			&metrics[0], &metrics[1], &metrics[2], &metrics[3], &metrics[4], &metrics[5],
			&rec.ArtifactPath, &rec.Active, &rec.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan model", err)
		}

		if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataIntegrity, err, "corrupt feature list on model %d", rec.ID)
		}

		if err := json.Unmarshal([]byte(hyperJSON), &rec.Hyperparameters); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataIntegrity, err, "corrupt hyperparameters on model %d", rec.ID)
		}

		rec.Family = types.ModelFamily(family)
		rec.Target = types.Horizon(target)
		rec.Train = utcRange(rec.Train)
		rec.Validation = utcRange(rec.Validation)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Metrics = types.ValidationMetrics{
			IC1d:     fromNullFloat(metrics[0]),
			IC3d:     fromNullFloat(metrics[1]),
			IC7d:     fromNullFloat(metrics[2]),
			Accuracy: fromNullFloat(metrics[3]),
			Sharpe:   fromNullFloat(metrics[4]),
			WinRate:  fromNullFloat(metrics[5]),
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate models", err)
	}

	return records, nil
}

func (r *DuckDBRegistry) Backtests(ctx context.Context, modelID int64) ([]types.BacktestResult, error) {
	sqlStr, args, err := r.sq.Select(backtestColumns...).
		From("backtest_results").
		Where("model_id = ?", modelID).
		OrderBy("window_index ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build backtest query", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query backtests", err)
	}
	defer rows.Close()

	results := make([]types.BacktestResult, 0)

	for rows.Next() {
		var (
			bt types.BacktestResult
			f  [16]sql.NullFloat64
		)

		err := rows.Scan(&bt.ID, &bt.ModelID, &bt.Window,
			&bt.Train.From, &bt.Train.To, &bt.Validation.From, &bt.Validation.To, &bt.Universe,
			&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &bt.ICDays,
			&f[6], &f[7], &f[8], &f[9], &bt.Classification.Samples,
			&f[10], &f[11], &f[12], &f[13], &bt.Portfolio.TotalTrades, &bt.Portfolio.TradingDays, &bt.Portfolio.AvgHoldingDays,
			&bt.Degenerate, &bt.Notes, &bt.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan backtest", err)
		}

		bt.Train = utcRange(bt.Train)
		bt.Validation = utcRange(bt.Validation)
		bt.CreatedAt = bt.CreatedAt.UTC()
		bt.IC1d, bt.IC3d, bt.IC7d = fromNullFloat(f[0]), fromNullFloat(f[1]), fromNullFloat(f[2])
		bt.ICMean, bt.ICStd, bt.ICIR = fromNullFloat(f[3]), fromNullFloat(f[4]), fromNullFloat(f[5])
		bt.Classification.Accuracy = fromNullFloat(f[6])
		bt.Classification.PrecisionBuy = fromNullFloat(f[7])
		bt.Classification.RecallBuy = fromNullFloat(f[8])
		bt.Classification.F1Buy = fromNullFloat(f[9])
		bt.Portfolio.Sharpe = fromNullFloat(f[10])
		bt.Portfolio.MaxDrawdown = fromNullFloat(f[11])
		bt.Portfolio.TotalReturn = fromNullFloat(f[12])
		bt.Portfolio.WinRate = fromNullFloat(f[13])

		results = append(results, bt)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate backtests", err)
	}

	return results, nil
}

func (r *DuckDBRegistry) ActivationHistory(ctx context.Context) ([]types.Activation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, model_id, previous_id, activated_at FROM model_activations ORDER BY version ASC`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query activations", err)
	}
	defer rows.Close()

	history := make([]types.Activation, 0)

	for rows.Next() {
		var (
			a    types.Activation
			prev sql.NullInt64
		)

		if err := rows.Scan(&a.Version, &a.ModelID, &prev, &a.ActivatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan activation", err)
		}

		if prev.Valid {
			a.PreviousID = optional.Some(prev.Int64)
		}

		a.ActivatedAt = a.ActivatedAt.UTC()
		history = append(history, a)
	}

	return history, rows.Err()
}

func (r *DuckDBRegistry) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("Rollback failed", zap.Error(rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit transaction", err)
	}

	return nil
}

func utcRange(r types.DateRange) types.DateRange {
	return types.DateRange{From: r.From.UTC(), To: r.To.UTC()}
}

func nullFloat(o optional.Option[float64]) sql.NullFloat64 {
	return sql.NullFloat64{Float64: o.Unwrap(), Valid: o.IsSome()}
}

func fromNullFloat(n sql.NullFloat64) optional.Option[float64] {
	if !n.Valid {
		return optional.None[float64]()
	}

	return optional.Some(n.Float64)
}
