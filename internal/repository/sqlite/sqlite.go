package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"grimoire/internal/domain"
	"grimoire/internal/engine"
	"grimoire/internal/repository"

	_ "modernc.org/sqlite"
)

// defaultReadLimit caps read-back queries called without an explicit limit
const defaultReadLimit = 100

// Journal implements repository.Journal using SQLite
type Journal struct {
	db *sql.DB
}

// New opens the journal database at dbPath, creating and migrating it as
// needed
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS definitions (
		class TEXT PRIMARY KEY,
		description TEXT,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS archived_instances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance_id TEXT NOT NULL,
		class TEXT NOT NULL,
		data JSON NOT NULL,
		archived_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		verb TEXT NOT NULL,
		fizzled INTEGER NOT NULL DEFAULT 0,
		undone INTEGER NOT NULL DEFAULT 0,
		data JSON NOT NULL,
		applied_at TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		kind TEXT NOT NULL,
		data JSON NOT NULL,
		received_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS divergences (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		class TEXT,
		property TEXT NOT NULL,
		data JSON NOT NULL,
		detected_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_instances_class ON instances(class);
	CREATE INDEX IF NOT EXISTS idx_archived_instances_class ON archived_instances(class);
	CREATE INDEX IF NOT EXISTS idx_executions_verb ON executions(verb);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_divergences_instance ON divergences(instance_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

// SaveDefinition upserts the stored form of a class definition
func (j *Journal) SaveDefinition(ctx context.Context, def *domain.Definition) error {
	data, err := json.Marshal(newDefinitionRecord(def))
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO definitions (class, description, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(class) DO UPDATE SET
			description = excluded.description,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, def.Class(), def.Description(), data)

	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

// SaveInstance upserts the canonical form of an instance
func (j *Journal) SaveInstance(ctx context.Context, in *domain.Instance) error {
	c := in.CanonicalForm()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal instance %s: %w", c.ID, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO instances (id, class, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			class = excluded.class,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, c.ID, c.Class, data)

	if err != nil {
		return fmt.Errorf("failed to save instance %s: %w", c.ID, err)
	}
	return nil
}

// ArchiveInstance moves an instance's final snapshot from the live table
// to the archive
func (j *Journal) ArchiveInstance(ctx context.Context, c domain.Canonical) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal instance %s: %w", c.ID, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archived_instances (instance_id, class, data, archived_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Class, data, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to archive instance %s: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to delete instance %s: %w", c.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordExecution upserts a verb execution record. Marking an execution
// undone re-records it under the same id.
func (j *Journal) RecordExecution(ctx context.Context, ex *domain.Execution) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", ex.ID, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO executions (id, verb, fizzled, undone, data, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			fizzled = excluded.fizzled,
			undone = excluded.undone,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, ex.ID, ex.Verb, ex.Fizzled, ex.Undone, data, formatTime(ex.AppliedAt))

	if err != nil {
		return fmt.Errorf("failed to record execution %s: %w", ex.ID, err)
	}
	return nil
}

// RecordEvent appends one ingested host engine event
func (j *Journal) RecordEvent(ctx context.Context, source string, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (source, kind, data, received_at)
		VALUES (?, ?, ?, ?)
	`, source, string(ev.Kind), data, formatTime(time.Now()))

	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// RecordDivergence appends one divergence record
func (j *Journal) RecordDivergence(ctx context.Context, d *domain.Divergence) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal divergence %s: %w", d.ID, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO divergences (id, instance_id, class, property, data, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.InstanceID, d.Class, d.Property, data, formatTime(d.DetectedAt))

	if err != nil {
		return fmt.Errorf("failed to record divergence %s: %w", d.ID, err)
	}
	return nil
}

// RecentEvents returns the most recently ingested events, newest first
func (j *Journal) RecentEvents(ctx context.Context, limit int) ([]repository.StoredEvent, error) {
	if limit <= 0 {
		limit = defaultReadLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, source, data, received_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]repository.StoredEvent, 0)
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		stored, err := row.toStored()
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", row.ID, err)
		}
		events = append(events, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// Executions returns recorded executions, newest first, optionally
// filtered by verb name
func (j *Journal) Executions(ctx context.Context, verb string, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = defaultReadLimit
	}

	query := `SELECT data FROM executions`
	args := make([]any, 0, 2)
	if verb != "" {
		query += ` WHERE verb = ?`
		args = append(args, verb)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*domain.Execution, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		ex := &domain.Execution{}
		if err := json.Unmarshal(data, ex); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution data: %w", err)
		}
		executions = append(executions, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return executions, nil
}

// Divergences returns recorded divergences, newest first
func (j *Journal) Divergences(ctx context.Context, limit int) ([]*domain.Divergence, error) {
	if limit <= 0 {
		limit = defaultReadLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT data FROM divergences ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query divergences: %w", err)
	}
	defer rows.Close()

	divergences := make([]*domain.Divergence, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan divergence: %w", err)
		}

		d := &domain.Divergence{}
		if err := json.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal divergence data: %w", err)
		}
		divergences = append(divergences, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating divergences: %w", err)
	}
	return divergences, nil
}

// ArchivedInstances returns archived instance snapshots, newest first,
// optionally filtered by class
func (j *Journal) ArchivedInstances(ctx context.Context, class string, limit int) ([]domain.Canonical, error) {
	if limit <= 0 {
		limit = defaultReadLimit
	}

	query := `SELECT data FROM archived_instances`
	args := make([]any, 0, 2)
	if class != "" {
		query += ` WHERE class = ?`
		args = append(args, class)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived instances: %w", err)
	}
	defer rows.Close()

	archived := make([]domain.Canonical, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan archived instance: %w", err)
		}

		var c domain.Canonical
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived instance data: %w", err)
		}
		archived = append(archived, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived instances: %w", err)
	}
	return archived, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}
