package db

import (
	"embed"
	"fmt"
	"log"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration for the database's dialect.
func Migrate(d *DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	dir := "migrations/postgres"
	gooseDialect := "postgres"
	if d.Dialect == SQLite {
		dir = "migrations/sqlite"
		gooseDialect = "sqlite3"
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	before, err := goose.GetDBVersion(d.DB)
	if err != nil {
		before = 0
	}

	if err := goose.Up(d.DB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	after, err := goose.GetDBVersion(d.DB)
	if err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if after != before {
		log.Printf("[INFO] database migrated from version %d to %d", before, after)
	}

	return nil
}
