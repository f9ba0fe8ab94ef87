package sqlite

import "database/sql"

// migrations are applied in order; schema_version tracks the last applied
// index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS coaching_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		transcript TEXT NOT NULL DEFAULT '[]',
		covered_topics TEXT NOT NULL DEFAULT '[]',
		question_count INTEGER NOT NULL DEFAULT 0,
		completion_percentage INTEGER NOT NULL DEFAULT 0,
		is_complete INTEGER NOT NULL DEFAULT 0,
		final_summary TEXT,
		extracted_data TEXT NOT NULL DEFAULT '{}',
		completed_at TEXT,
		updated_at TEXT NOT NULL,
		updated_at_epoch INTEGER NOT NULL,
		UNIQUE(user_id, category)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coaching_sessions_user ON coaching_sessions(user_id)`,
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return err
		}
		if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return err
		}
	}
	return nil
}
