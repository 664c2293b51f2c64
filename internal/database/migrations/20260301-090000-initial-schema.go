package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-090000",
		Description: "Create environments table",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS environments (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				group_name TEXT NOT NULL DEFAULT 'Default',
				notes TEXT NOT NULL DEFAULT '',
				data_dir TEXT NOT NULL UNIQUE,
				tags TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				last_used TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_environments_group ON environments(group_name)`,
		},
	})
}
