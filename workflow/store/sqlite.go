package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It persists session checkpoints in a single-file database, which is
// the default deployment mode: zero setup, durable across restarts,
// and sufficient for a single local store.
//
// Schema:
//   - sessions: one row per session id, atomically replaced on Save
//   - session_steps: append-only step history, UNIQUE(session_id, step)
//
// The store enables WAL mode so readers don't block the single writer,
// and commits each Save in a transaction so a checkpoint and its
// history row land together or not at all.
//
// Type parameter S is the state type to persist (must be
// JSON-serializable).
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./foundry.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and schema,
// enables WAL mode, and configures a busy timeout.
//
// Example:
//
//	st, err := store.NewSQLiteStore[ProtocolState]("./foundry.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	sessionsTable := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT NOT NULL PRIMARY KEY,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			suspended INTEGER NOT NULL DEFAULT 0,
			payload TEXT,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, sessionsTable); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	stepsTable := `
		CREATE TABLE IF NOT EXISTS session_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			suspended INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, step)
		)
	`
	if _, err := s.db.ExecContext(ctx, stepsTable); err != nil {
		return fmt.Errorf("failed to create session_steps table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_steps_session ON session_steps(session_id)"); err != nil {
		return fmt.Errorf("failed to create idx_steps_session: %w", err)
	}
	return nil
}

// Save atomically replaces the session's checkpoint and appends a
// history row, in a single transaction.
func (s *SQLiteStore[S]) Save(ctx context.Context, cp Checkpoint[S]) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	var payload any
	if cp.Payload != nil {
		payload = string(cp.Payload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
		INSERT INTO sessions (session_id, step, node, suspended, payload, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			step = excluded.step,
			node = excluded.node,
			suspended = excluded.suspended,
			payload = excluded.payload,
			state = excluded.state,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsert,
		cp.SessionID, cp.Step, cp.Node, boolToInt(cp.Suspended), payload, string(stateJSON), cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	history := `
		INSERT INTO session_steps (session_id, step, node, suspended, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, step) DO UPDATE SET
			node = excluded.node,
			suspended = excluded.suspended,
			state = excluded.state
	`
	if _, err := tx.ExecContext(ctx, history,
		cp.SessionID, cp.Step, cp.Node, boolToInt(cp.Suspended), string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save step history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the latest checkpoint for a session.
// Returns ErrNotFound if the session id has never been saved.
func (s *SQLiteStore[S]) Load(ctx context.Context, sessionID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return zero, fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	query := `
		SELECT step, node, suspended, payload, state, updated_at
		FROM sessions
		WHERE session_id = ?
	`

	var (
		cp        Checkpoint[S]
		suspended int
		payload   sql.NullString
		stateJSON string
	)
	cp.SessionID = sessionID

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&cp.Step, &cp.Node, &suspended, &payload, &stateJSON, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp.Suspended = suspended != 0
	if payload.Valid {
		cp.Payload = []byte(payload.String)
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return cp, nil
}

// Close closes the database connection. The store cannot be used after
// Close returns.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
