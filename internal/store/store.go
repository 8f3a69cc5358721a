// Package store provides SQLite-backed simulation state storage.
// All access goes through a bounded permit pool so a rate-limited backing
// service (or a busy local file) is never hammered by a burst of tick work,
// and transient failures are retried with exponential backoff.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	"github.com/talgya/officeverse/internal/world"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: record not found")

const (
	defaultPermits = 5
	maxAttempts    = 3
	baseBackoff    = 50 * time.Millisecond
)

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
	gate *semaphore.Weighted
}

// Open opens or creates a SQLite database at the given path.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*DB, error) {
	return OpenWithPermits(path, defaultPermits)
}

// OpenWithPermits opens the database with a custom concurrency gate size.
func OpenWithPermits(path string, permits int64) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Pooled connections would each get their own empty in-memory db.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, gate: semaphore.NewWeighted(permits)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sim_clock (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		day INTEGER NOT NULL DEFAULT 1,
		minute_of_day INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO sim_clock (id, day, minute_of_day) VALUES (1, 1, 0);

	CREATE TABLE IF NOT EXISTS npc (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		traits_json TEXT NOT NULL,
		backstory TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		area_id TEXT NOT NULL,
		current_action_id TEXT NOT NULL DEFAULT '',
		wander_probability REAL NOT NULL DEFAULT 0.4
	);

	CREATE TABLE IF NOT EXISTS area (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		x REAL NOT NULL,
		y REAL NOT NULL,
		w REAL NOT NULL,
		h REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS object (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		area_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_def (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL UNIQUE,
		emoji TEXT NOT NULL,
		base_minutes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_instance (
		id TEXT PRIMARY KEY,
		npc_id TEXT NOT NULL,
		def_id TEXT NOT NULL,
		object_id TEXT NOT NULL DEFAULT '',
		start_min INTEGER NOT NULL,
		duration_min INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued'
	);

	CREATE TABLE IF NOT EXISTS plan (
		npc_id TEXT NOT NULL,
		sim_day INTEGER NOT NULL,
		actions_json TEXT NOT NULL,
		PRIMARY KEY (npc_id, sim_day)
	);

	CREATE TABLE IF NOT EXISTS memory (
		id TEXT PRIMARY KEY,
		npc_id TEXT NOT NULL,
		sim_min INTEGER NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		importance INTEGER NOT NULL DEFAULT 1,
		embedding_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dialogue (
		id TEXT PRIMARY KEY,
		npc_a TEXT NOT NULL,
		npc_b TEXT NOT NULL,
		start_min INTEGER NOT NULL,
		end_min INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS dialogue_turn (
		id TEXT PRIMARY KEY,
		dialogue_id TEXT NOT NULL,
		speaker_id TEXT NOT NULL,
		sim_min INTEGER NOT NULL,
		text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dialogue_cooldown (
		pair_key TEXT PRIMARY KEY,
		cooldown_until INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_event (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		start_min INTEGER NOT NULL,
		end_min INTEGER NOT NULL,
		metadata_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memory_npc_time ON memory(npc_id, sim_min DESC);
	CREATE INDEX IF NOT EXISTS idx_instance_npc ON action_instance(npc_id);
	CREATE INDEX IF NOT EXISTS idx_turn_dialogue ON dialogue_turn(dialogue_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// run executes op under a concurrency permit, retrying transient failures
// with bounded exponential backoff. Application-level conditions (not
// found, constraint violations) are never retried.
func (db *DB) run(ctx context.Context, op func(ctx context.Context) error) error {
	if err := db.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire store permit: %w", err)
	}
	defer db.gate.Release(1)

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(baseBackoff << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = op(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return err
}

// isTransient reports whether an error is worth retrying: SQLite lock
// contention, not data-level conditions.
func isTransient(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// AdvanceClock atomically moves the simulation clock forward by increment
// minutes and returns the new value. The rollover arithmetic runs inside a
// single UPDATE so concurrent callers can never double-apply one base value.
func (db *DB) AdvanceClock(ctx context.Context, increment int) (world.Clock, error) {
	var c world.Clock
	err := db.run(ctx, func(ctx context.Context) error {
		row := db.conn.QueryRowContext(ctx, `
			UPDATE sim_clock
			SET day = day + (minute_of_day + ?) / ?,
			    minute_of_day = (minute_of_day + ?) % ?
			WHERE id = 1
			RETURNING day, minute_of_day`,
			increment, world.MinutesPerDay, increment, world.MinutesPerDay)
		return row.Scan(&c.Day, &c.MinuteOfDay)
	})
	if err != nil {
		return world.Clock{}, fmt.Errorf("advance clock: %w", err)
	}
	return c, nil
}

// GetClock reads the current clock value without advancing it.
func (db *DB) GetClock(ctx context.Context) (world.Clock, error) {
	var c world.Clock
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.QueryRowContext(ctx,
			"SELECT day, minute_of_day FROM sim_clock WHERE id = 1").
			Scan(&c.Day, &c.MinuteOfDay)
	})
	if err != nil {
		return world.Clock{}, fmt.Errorf("get clock: %w", err)
	}
	return c, nil
}
