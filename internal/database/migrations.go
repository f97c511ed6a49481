package database

import (
	"database/sql"
)

type migration struct {
	name     string
	sqlite   string
	postgres string
}

var migrations = []migration{
	{
		name: "create_namespace_tokens",
		sqlite: `CREATE TABLE IF NOT EXISTS namespace_tokens (
			id TEXT PRIMARY KEY,
			token_hash TEXT NOT NULL,
			namespace TEXT NOT NULL,
			description TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		postgres: `CREATE TABLE IF NOT EXISTS namespace_tokens (
			id TEXT PRIMARY KEY,
			token_hash TEXT NOT NULL,
			namespace TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		name:     "index_namespace_tokens_namespace",
		sqlite:   `CREATE INDEX IF NOT EXISTS idx_namespace_tokens_namespace ON namespace_tokens(namespace)`,
		postgres: `CREATE INDEX IF NOT EXISTS idx_namespace_tokens_namespace ON namespace_tokens(namespace)`,
	},
	{
		name:     "index_namespace_tokens_created_at",
		sqlite:   `CREATE INDEX IF NOT EXISTS idx_namespace_tokens_created_at ON namespace_tokens(created_at)`,
		postgres: `CREATE INDEX IF NOT EXISTS idx_namespace_tokens_created_at ON namespace_tokens(created_at)`,
	},
	{
		name: "create_audit_logs",
		sqlite: `CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor TEXT NOT NULL,
			namespace TEXT,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT,
			ip_address TEXT,
			user_agent TEXT,
			details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		postgres: `CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			actor TEXT NOT NULL,
			namespace TEXT,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT,
			ip_address TEXT,
			user_agent TEXT,
			details TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		name:     "index_audit_logs_created_at",
		sqlite:   `CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
		postgres: `CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
	},
}

func createMigrationsTable(db *DB) error {
	query := `CREATE TABLE IF NOT EXISTS migrations (
		migration TEXT PRIMARY KEY,
		batch INTEGER NOT NULL
	)`
	_, err := db.Exec(query)
	return err
}

func hasMigrationRun(db *DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(db.Rebind("SELECT COUNT(*) FROM migrations WHERE migration = ?"), name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordMigration(db *DB, name string, batch int) error {
	_, err := db.Exec(db.Rebind("INSERT INTO migrations (migration, batch) VALUES (?, ?)"), name, batch)
	return err
}

func nextBatch(db *DB) (int, error) {
	var batch sql.NullInt64
	if err := db.QueryRow("SELECT MAX(batch) FROM migrations").Scan(&batch); err != nil {
		return 0, err
	}
	return int(batch.Int64) + 1, nil
}

func runMigrations(db *DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	batch, err := nextBatch(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		done, err := hasMigrationRun(db, m.name)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		stmt := m.sqlite
		if db.Dialect == DialectPostgres {
			stmt = m.postgres
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
		if err := recordMigration(db, m.name, batch); err != nil {
			return err
		}
	}
	return nil
}
