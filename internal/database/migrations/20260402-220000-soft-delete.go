package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260402-220000",
		Description: "Add deleted_at for trash support",
		Up: []string{
			`ALTER TABLE environments ADD COLUMN deleted_at TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_environments_deleted_at ON environments(deleted_at)`,
		},
	})
}
