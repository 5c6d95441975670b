package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// Designed for shared deployments where several front ends (HTTP, CLI,
// MCP) point at the same database, and for audit-trail requirements:
// the step history table keeps every checkpoint ever committed.
//
// Schema:
//   - sessions: one row per session id, atomically replaced on Save
//   - session_steps: append-only step history, UNIQUE(session_id, step)
//
// Type parameter S is the state type to persist (must be
// JSON-serializable).
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	store, err := NewMySQLStore[ProtocolState]("user:pass@tcp(localhost:3306)/foundry?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Never hardcode credentials; pass the DSN from the environment. The
// DSN should include parseTime=true so updated_at scans into time.Time.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	sessionsTable := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id VARCHAR(255) NOT NULL PRIMARY KEY,
			step INT NOT NULL,
			node VARCHAR(255) NOT NULL,
			suspended TINYINT(1) NOT NULL DEFAULT 0,
			payload JSON NULL,
			state JSON NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, sessionsTable); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	stepsTable := `
		CREATE TABLE IF NOT EXISTS session_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node VARCHAR(255) NOT NULL,
			suspended TINYINT(1) NOT NULL DEFAULT 0,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_session (session_id),
			UNIQUE KEY unique_session_step (session_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, stepsTable); err != nil {
		return fmt.Errorf("failed to create session_steps table: %w", err)
	}
	return nil
}

// Save atomically replaces the session's checkpoint and appends a
// history row, in a single transaction.
func (m *MySQLStore[S]) Save(ctx context.Context, cp Checkpoint[S]) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

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

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
		INSERT INTO sessions (session_id, step, node, suspended, payload, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			step = VALUES(step),
			node = VALUES(node),
			suspended = VALUES(suspended),
			payload = VALUES(payload),
			state = VALUES(state),
			updated_at = VALUES(updated_at)
	`
	if _, err := tx.ExecContext(ctx, upsert,
		cp.SessionID, cp.Step, cp.Node, cp.Suspended, payload, string(stateJSON), cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	history := `
		INSERT INTO session_steps (session_id, step, node, suspended, state)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node = VALUES(node),
			suspended = VALUES(suspended),
			state = VALUES(state)
	`
	if _, err := tx.ExecContext(ctx, history,
		cp.SessionID, cp.Step, cp.Node, cp.Suspended, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save step history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the latest checkpoint for a session.
// Returns ErrNotFound if the session id has never been saved.
func (m *MySQLStore[S]) Load(ctx context.Context, sessionID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return zero, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	query := `
		SELECT step, node, suspended, payload, state, updated_at
		FROM sessions
		WHERE session_id = ?
	`

	var (
		cp        Checkpoint[S]
		payload   sql.NullString
		stateJSON string
	)
	cp.SessionID = sessionID

	err := m.db.QueryRowContext(ctx, query, sessionID).Scan(
		&cp.Step, &cp.Node, &cp.Suspended, &payload, &stateJSON, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if payload.Valid {
		cp.Payload = []byte(payload.String)
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return cp, nil
}

// Close closes the database connection pool. The store cannot be used
// after Close returns.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
