// Package storage opens bun database handles for the supported drivers and
// manages the schema used by tests and local setups.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/hnatiak/photoshare/model"
)

// OpenSQLite opens a SQLite-backed bun handle. A single connection is kept
// so in-memory databases are not silently duplicated per pool slot.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	registerModels(db)
	return db, nil
}

// OpenPostgres opens a Postgres-backed bun handle through the pgx stdlib
// driver.
func OpenPostgres(dsn string) (*bun.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	sqldb := stdlib.OpenDB(*cfg)

	db := bun.NewDB(sqldb, pgdialect.New())
	registerModels(db)
	return db, nil
}

// registerModels wires the m2m join table. bun resolves m2m relations
// through registered models only.
func registerModels(db *bun.DB) {
	db.RegisterModel((*model.PhotoTag)(nil))
}

var tables = []any{
	(*model.User)(nil),
	(*model.Photo)(nil),
	(*model.Tag)(nil),
	(*model.PhotoTag)(nil),
	(*model.Comment)(nil),
	(*model.QRCode)(nil),
}

// ResetSchema drops and recreates every table. Test and development use
// only.
func ResetSchema(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
