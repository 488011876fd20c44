// Package migrations embeds the ClickHouse schema managed by goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the goose SQL files.
//
//go:embed *.sql
var FS embed.FS

// Dir is the migrations directory inside FS.
const Dir = "."

// Setup points goose at the embedded files and the ClickHouse dialect.
func Setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, Dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// DSN builds a database/sql connection string for the clickhouse driver.
func DSN(host string, port int, database, user, password string, useTLS bool) string {
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?dial_timeout=10s&max_execution_time=60",
		user, password, host, port, database)
	if useTLS {
		dsn += "&secure=true"
	}
	return dsn
}
