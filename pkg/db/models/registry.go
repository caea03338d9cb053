package models

// All lists every persisted model. SQLite-backed tests and the dev
// auto-migrate path use it; Postgres schema lives in goose migrations.
func All() []any {
	return []any{
		&Wallet{},
		&Transaction{},
		&Investment{},
		&P2PTrade{},
		&BinaryOrder{},
		&ExchangeOrder{},
		&LedgerOperation{},
		&Setting{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
