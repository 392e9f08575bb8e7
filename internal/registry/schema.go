package registry

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS model_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS models (
		model_id BIGINT PRIMARY KEY DEFAULT nextval('model_id_seq'),
		name TEXT NOT NULL UNIQUE,
		family TEXT NOT NULL,
		target_days INTEGER NOT NULL,
		features TEXT NOT NULL,
		hyperparameters TEXT NOT NULL,
		train_from TIMESTAMP NOT NULL,
		train_to TIMESTAMP NOT NULL,
		validation_from TIMESTAMP NOT NULL,
		validation_to TIMESTAMP NOT NULL,
		universe TEXT NOT NULL,
		ic_1d DOUBLE,
		ic_3d DOUBLE,
		ic_7d DOUBLE,
		accuracy DOUBLE,
		sharpe DOUBLE,
		win_rate DOUBLE,
		artifact_path TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS active_model (
		slot INTEGER PRIMARY KEY,
		model_id BIGINT NOT NULL,
		version BIGINT NOT NULL,
		activated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS model_activations (
		version BIGINT PRIMARY KEY,
		model_id BIGINT NOT NULL,
		previous_id BIGINT,
		activated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_results (
		result_id TEXT PRIMARY KEY,
		model_id BIGINT NOT NULL,
		window_index INTEGER NOT NULL,
		train_from TIMESTAMP NOT NULL,
		train_to TIMESTAMP NOT NULL,
		validation_from TIMESTAMP NOT NULL,
		validation_to TIMESTAMP NOT NULL,
		universe TEXT NOT NULL,
		ic_1d DOUBLE,
		ic_3d DOUBLE,
		ic_7d DOUBLE,
		ic_mean DOUBLE,
		ic_std DOUBLE,
		icir DOUBLE,
		ic_days INTEGER NOT NULL,
		accuracy DOUBLE,
		precision_buy DOUBLE,
		recall_buy DOUBLE,
		f1_buy DOUBLE,
		samples INTEGER NOT NULL,
		sharpe DOUBLE,
		max_drawdown DOUBLE,
		total_return DOUBLE,
		win_rate DOUBLE,
		total_trades INTEGER NOT NULL,
		trading_days INTEGER NOT NULL,
		avg_holding_days DOUBLE NOT NULL,
		degenerate BOOLEAN NOT NULL,
		notes TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}
