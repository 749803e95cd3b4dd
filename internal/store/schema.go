package store

// Schema v1 - runs, attempts and class progress
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per download invocation
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  finished_at DATETIME,
  seed INTEGER NOT NULL,
  start_index INTEGER NOT NULL DEFAULT 0,
  end_index INTEGER NOT NULL DEFAULT -1,
  max_per_class INTEGER NOT NULL DEFAULT -1,
  classes INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running'
);

-- Every candidate drawn by the orchestrator
CREATE TABLE IF NOT EXISTS attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  class_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  reason TEXT,
  error TEXT,
  output_file TEXT,
  sample_rate INTEGER,
  size_bytes INTEGER,
  duration_ms INTEGER,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
CREATE INDEX IF NOT EXISTS idx_attempts_class ON attempts(class_id);

-- Latest state per class
CREATE TABLE IF NOT EXISTS class_progress (
  class_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  target INTEGER NOT NULL,
  done INTEGER NOT NULL,
  failed INTEGER NOT NULL DEFAULT 0,
  terminal TEXT,
  run_id TEXT,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - reporting indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_attempts_outcome_reason ON attempts(run_id, outcome, reason);
CREATE INDEX IF NOT EXISTS idx_attempts_source ON attempts(class_id, source_id);
CREATE INDEX IF NOT EXISTS idx_class_progress_terminal ON class_progress(terminal);
`
