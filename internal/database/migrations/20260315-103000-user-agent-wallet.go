package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260315-103000",
		Description: "Add user agent override and wallet address",
		Up: []string{
			`ALTER TABLE environments ADD COLUMN user_agent TEXT`,
			`ALTER TABLE environments ADD COLUMN wallet_address TEXT`,
		},
	})
}
