package database

// schema 运行记录表结构
var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id            UUID PRIMARY KEY,
		start_date    TEXT NOT NULL DEFAULT '',
		end_date      TEXT NOT NULL DEFAULT '',
		slot_minutes  INTEGER NOT NULL,
		excess_policy TEXT NOT NULL,
		dimensions    TEXT[] NOT NULL DEFAULT '{}',
		slots         INTEGER NOT NULL DEFAULT 0,
		dropped_rows  INTEGER NOT NULL DEFAULT 0,
		lack_hours    DOUBLE PRECISION NOT NULL DEFAULT 0,
		excess_hours  DOUBLE PRECISION NOT NULL DEFAULT 0,
		required_hire INTEGER NOT NULL DEFAULT 0,
		cheapest      TEXT NOT NULL DEFAULT '',
		diagnostics   TEXT[] NOT NULL DEFAULT '{}',
		summary       JSONB,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS analysis_run_allocations (
		id           UUID PRIMARY KEY,
		run_id       UUID NOT NULL REFERENCES analysis_runs (id) ON DELETE CASCADE,
		category     TEXT NOT NULL,
		strategy     TEXT NOT NULL,
		lack_hours   DOUBLE PRECISION NOT NULL DEFAULT 0,
		excess_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		missing      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_run_allocations_run ON analysis_run_allocations (run_id)`,
}
