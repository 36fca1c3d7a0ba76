// Package migrations holds the idempotent DDL for the persons schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB, *sql.Tx and their sqlx counterparts.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var statements = []string{
	`CREATE TABLE IF NOT EXISTS persons (
		id         INTEGER PRIMARY KEY,
		kind       TEXT    NOT NULL,
		name       TEXT    NOT NULL DEFAULT '',
		birth_date DATE    NOT NULL,
		city       TEXT    NOT NULL DEFAULT '',
		street     TEXT    NOT NULL DEFAULT '',
		building   INTEGER NOT NULL DEFAULT 0,
		hobby      TEXT,
		company    TEXT,
		salary     INTEGER
	)`,
	`DO $$ BEGIN
		ALTER TABLE persons ADD CONSTRAINT persons_kind_check
			CHECK (kind IN ('person', 'child', 'employee'));
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`CREATE INDEX IF NOT EXISTS persons_city_idx ON persons (city)`,
	`CREATE INDEX IF NOT EXISTS persons_name_idx ON persons (name)`,
	`CREATE INDEX IF NOT EXISTS persons_birth_date_idx ON persons (birth_date)`,
	`CREATE INDEX IF NOT EXISTS persons_employee_salary_idx ON persons (salary) WHERE kind = 'employee'`,
}

// Statements returns a copy of the schema statements in execution order.
func Statements() []string {
	out := make([]string, len(statements))
	copy(out, statements)
	return out
}

// Apply executes every statement in order and stops at the first failure.
func Apply(ctx context.Context, db Execer) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
