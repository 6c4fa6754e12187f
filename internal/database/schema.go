package database

// Schema statements run at startup. CREATE TABLE IF NOT EXISTS keeps
// them idempotent across restarts; the column set is the persistence
// contract with external readers.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		code TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'python',
		status TEXT NOT NULL DEFAULT 'processing',
		overall_severity INTEGER NOT NULL DEFAULT 0,
		has_bugs BOOLEAN NOT NULL DEFAULT FALSE,
		summary TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		pattern TEXT NOT NULL,
		severity INTEGER NOT NULL,
		confidence REAL NOT NULL,
		description TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		fix_hint TEXT NOT NULL DEFAULT '',
		detection_stage TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_analysis_id ON findings(analysis_id)`,
	`CREATE TABLE IF NOT EXISTS stage_logs (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		stage_name TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		elapsed_s REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_logs_analysis_id ON stage_logs(analysis_id)`,
	`CREATE TABLE IF NOT EXISTS linguistic_details (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		intent_match_score REAL NOT NULL DEFAULT 0,
		unprompted_features TEXT NOT NULL DEFAULT '[]',
		missing_features TEXT NOT NULL DEFAULT '[]',
		hardcoded_values TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_linguistic_details_analysis_id ON linguistic_details(analysis_id)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		helpful BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
}
