// Package sqlite persists daily bar history and computed snapshot history.
// Single database file, WAL mode, batched transactions for bar ingest.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stockpulse/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// snapshots kept per symbol before pruning.
const snapshotHistoryDepth = 30

// Store wraps the SQLite database holding bars and snapshot history.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database, enabling WAL mode and the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer, occasional readers
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol   TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			as_of      INTEGER NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots (symbol, id DESC);
	`)
	return err
}

// WriteBars upserts a batch of daily bars for one symbol in a single
// transaction. Re-ingesting the same date replaces the stored bar.
func (s *Store) WriteBars(ctx context.Context, symbol string, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		ts := b.Date.UTC().Truncate(24 * time.Hour).Unix()
		if _, err := stmt.Exec(symbol, ts, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ReadBars returns the stored daily history for a symbol, ascending by
// date, ready to feed the engine.
func (s *Store) ReadBars(ctx context.Context, symbol string) (model.PriceSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ?
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	var series model.PriceSeries
	for rows.Next() {
		var b model.PriceBar
		var ts int64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		b.Date = time.Unix(ts, 0).UTC()
		series = append(series, b)
	}
	return series, rows.Err()
}

// SaveSnapshot appends a computed snapshot to the symbol's history and
// prunes old rows beyond snapshotHistoryDepth.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (symbol, as_of, data) VALUES (?, ?, ?)`,
		snap.Symbol, snap.AsOf.Unix(), string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE symbol = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE symbol = ? ORDER BY id DESC LIMIT ?
		)
	`, snap.Symbol, snap.Symbol, snapshotHistoryDepth)
	if err != nil {
		log.Printf("[sqlite] prune snapshots warning: %v", err)
	}

	return nil
}

// LatestSnapshot loads the most recent stored snapshot for a symbol.
// Returns (nil, nil) when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots
		WHERE symbol = ?
		ORDER BY id DESC
		LIMIT 1
	`, symbol).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
