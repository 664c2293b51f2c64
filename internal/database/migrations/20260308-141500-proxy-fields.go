package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260308-141500",
		Description: "Add per-environment proxy and display label",
		Up: []string{
			`ALTER TABLE environments ADD COLUMN proxy TEXT`,
			`ALTER TABLE environments ADD COLUMN proxy_label TEXT`,
		},
	})
}
