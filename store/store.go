// Package store is the local persistence layer: one SQLite file holding the
// normalized mirror tables and the per-stream sync state. All writes go
// through per-batch transactions; readers (the dashboard layer) only ever
// see committed state.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/logger"
)

type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the mirror database at path and runs pending
// migrations. It must be called once, before the scheduler starts.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errs.Config.Wrap(err, "failed to open store at %s", path)
	}
	// Streams write on independent goroutines; SQLite serializes writers,
	// so funnel everything through one connection instead of relying on
	// busy retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, errs.Config.Wrap(err, "failed to ping store at %s", path)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations are applied in order exactly once; the version table makes a
// restart a no-op.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sales (
		invoice_number     INTEGER PRIMARY KEY,
		sold_at            TIMESTAMP,
		seller_code        INTEGER NOT NULL DEFAULT 0,
		status             TEXT NOT NULL DEFAULT 'OK',
		payment_terms      TEXT NOT NULL DEFAULT '',
		gross_quantity     REAL NOT NULL DEFAULT 0,
		gross_value        REAL NOT NULL DEFAULT 0,
		cost_value         REAL NOT NULL DEFAULT 0,
		discount_value     REAL NOT NULL DEFAULT 0,
		cancelled_quantity REAL NOT NULL DEFAULT 0,
		cancelled_value    REAL NOT NULL DEFAULT 0,
		record_ts          TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at);

	CREATE TABLE IF NOT EXISTS cancellations (
		invoice_number INTEGER PRIMARY KEY,
		kind           TEXT NOT NULL,
		quantity       REAL NOT NULL DEFAULT 0,
		value          REAL NOT NULL DEFAULT 0,
		issued_at      TIMESTAMP,
		record_ts      TIMESTAMP,
		resolved       INTEGER NOT NULL DEFAULT 0,
		received_at    TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS purchases (
		invoice_number INTEGER PRIMARY KEY,
		supplier_code  INTEGER NOT NULL DEFAULT 0,
		issued_at      TIMESTAMP,
		total_value    REAL NOT NULL DEFAULT 0,
		item_count     INTEGER NOT NULL DEFAULT 0,
		record_ts      TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_issued_at ON purchases(issued_at);

	CREATE TABLE IF NOT EXISTS products (
		code          INTEGER PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		group_name    TEXT NOT NULL DEFAULT '',
		category_name TEXT NOT NULL DEFAULT '',
		sale_price    REAL NOT NULL DEFAULT 0,
		current_cost  REAL NOT NULL DEFAULT 0,
		on_hand       REAL NOT NULL DEFAULT 0,
		record_ts     TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stock_levels (
		product_code  INTEGER NOT NULL,
		location_code TEXT NOT NULL,
		on_hand       REAL NOT NULL DEFAULT 0,
		unit_cost     REAL NOT NULL DEFAULT 0,
		moved_at      TIMESTAMP,
		PRIMARY KEY (product_code, location_code)
	);

	CREATE TABLE IF NOT EXISTS sellers (
		code      INTEGER PRIMARY KEY,
		name      TEXT NOT NULL DEFAULT '',
		record_ts TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		code      INTEGER PRIMARY KEY,
		name      TEXT NOT NULL DEFAULT '',
		tax_id    TEXT NOT NULL DEFAULT '',
		record_ts TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		stream            TEXT PRIMARY KEY,
		cursor            TEXT NOT NULL DEFAULT '',
		backfill_complete INTEGER NOT NULL DEFAULT 0,
		updated_at        TIMESTAMP
	);`,
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TIMESTAMP)`); err != nil {
		return errs.Persistence.Wrap(err, "failed to create migration table")
	}

	var current int
	if err := s.db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return errs.Persistence.Wrap(err, "failed to read schema version")
	}

	for version := current + 1; version <= len(migrations); version++ {
		err := s.withTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[version-1]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, version)
			return err
		})
		if err != nil {
			return errs.Persistence.Wrap(err, "migration %d failed", version)
		}
		logger.Infof("applied store migration %d", version)
	}
	return nil
}

// withTx runs fn inside one transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Persistence.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Persistence.Wrap(err, "commit failed")
	}
	return nil
}

// TableCounts reports row counts of the mirror tables, used by the check
// command.
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, table := range []string{"sales", "cancellations", "purchases", "products", "stock_levels", "sellers", "suppliers"} {
		var n int64
		if err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
			return nil, errs.Persistence.Wrap(err, "failed to count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}
