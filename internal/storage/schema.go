package storage

var schema = []string{
	`CREATE TABLE IF NOT EXISTS prices (
		asset TEXT NOT NULL,
		time TIMESTAMP NOT NULL,
		close DOUBLE NOT NULL,
		volume DOUBLE,
		PRIMARY KEY (asset, time)
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		asset TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		close DOUBLE NOT NULL,
		fwd_return_1d DOUBLE,
		fwd_return_3d DOUBLE,
		fwd_return_7d DOUBLE,
		fwd_return_14d DOUBLE,
		label_1d SMALLINT,
		label_3d SMALLINT,
		label_7d SMALLINT,
		label_14d SMALLINT,
		volatility_7d DOUBLE,
		volatility_30d DOUBLE,
		PRIMARY KEY (asset, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS matrix_versions (
		version BIGINT PRIMARY KEY,
		snapshot_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		columns TEXT NOT NULL,
		row_count BIGINT NOT NULL,
		built_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		asset TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		model_id BIGINT NOT NULL,
		score DOUBLE NOT NULL,
		direction SMALLINT NOT NULL,
		prob_sell DOUBLE NOT NULL,
		prob_hold DOUBLE NOT NULL,
		prob_buy DOUBLE NOT NULL,
		confidence DOUBLE NOT NULL,
		attribution_class SMALLINT NOT NULL,
		top_features TEXT NOT NULL,
		no_data BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (asset, ts, model_id)
	)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		run_id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		status TEXT NOT NULL,
		error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS job_stats (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value DOUBLE NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
}
