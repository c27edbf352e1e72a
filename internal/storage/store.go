// Package storage persists warehouse inventory and scanning sessions in a
// local sqlite database.
package storage

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store handles database operations. Connections are opened lazily: a
// write handle in WAL mode and a separate read-only handle.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the database file at dbPath. The file and
// schema are created on first write.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Store{dbPath: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_loc=UTC", s.dbPath)
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			s.writeDBErr = err
			return
		}

		if err = initSchema(db); err != nil {
			_ = db.Close()
			s.writeDBErr = err
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// Make sure the schema exists before a read-only handle touches
		// the file.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		dsn := fmt.Sprintf("file:%s?_loc=UTC", s.dbPath)
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			s.readDBErr = err
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// cleanString collapses runs of whitespace into single spaces.
func cleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const insertSessionSQL = `
INSERT INTO scan_sessions (session_uuid, start_time, status)
VALUES (?, CURRENT_TIMESTAMP, 'active')`

// StartSession records the beginning of a scanning flight.
func (s *Store) StartSession(sessionUUID string) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.Exec(insertSessionSQL, sessionUUID); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

const endSessionSQL = `
UPDATE scan_sessions
SET end_time = CURRENT_TIMESTAMP,
    status   = ?,
    report   = ?
WHERE session_uuid = ?
  AND end_time IS NULL`

// EndSession marks a session terminal with the given status and report.
// The report can be a string, []byte, or any JSON-serializable value.
// Returns false when the session does not exist or was already ended,
// which makes repeated finalization a no-op.
func (s *Store) EndSession(sessionUUID, status string, report any) (bool, error) {
	var reportData sql.NullString

	switch v := report.(type) {
	case nil:
	case string:
		reportData = sql.NullString{String: v, Valid: true}
	case []byte:
		reportData = sql.NullString{String: string(v), Valid: true}
	default:
		p, err := json.Marshal(report)
		if err != nil {
			return false, fmt.Errorf("marshaling report: %w", err)
		}
		reportData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return false, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.Exec(endSessionSQL, status, reportData, sessionUUID)
	if err != nil {
		return false, fmt.Errorf("updating session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	return affected > 0, nil
}

const upsertItemSQL = `
INSERT INTO items (qr_code, name, shelf, position, timestamp)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (qr_code) DO UPDATE SET
    name     = excluded.name,
    shelf    = excluded.shelf,
    position = excluded.position`

// AddItem stores an inventory item, updating name and location when the
// code is already known. Fields are whitespace-normalised.
func (s *Store) AddItem(code, name, shelf, position string) (item *Item, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	code = cleanString(code)
	if _, err = db.Exec(upsertItemSQL, code, cleanString(name), cleanString(shelf), cleanString(position)); err != nil {
		return nil, fmt.Errorf("upserting item: %w", err)
	}

	if item, err = s.FindItem(code); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %q not found after upsert", code)
	}
	return item, nil
}

const selectItemSQL = `
SELECT
    id,
    qr_code,
    name,
    shelf,
    position,
    timestamp
FROM items
WHERE
    qr_code = ?`

// FindItem looks an item up by its exact code. Returns (nil, nil) when the
// code is unknown.
func (s *Store) FindItem(code string) (item *Item, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var it Item
	err = db.QueryRow(selectItemSQL, cleanString(code)).
		Scan(&it.ID, &it.QRCode, &it.Name, &it.Shelf, &it.Position, &it.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return &it, nil
}

const selectItemsSQL = `
SELECT
    id,
    qr_code,
    name,
    shelf,
    position,
    timestamp
FROM items
ORDER BY shelf, position, name`

// Items returns every stored inventory item.
func (s *Store) Items() (items []Item, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var it Item
		if err = rows.Scan(&it.ID, &it.QRCode, &it.Name, &it.Shelf, &it.Position, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const selectItemsByShelfSQL = `
SELECT
    id,
    qr_code,
    name,
    shelf,
    position,
    timestamp
FROM items
WHERE
    shelf = ?
ORDER BY position, name`

// ItemsByShelf returns the items stored on one shelf, by its exact label.
func (s *Store) ItemsByShelf(shelf string) (items []Item, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectItemsByShelfSQL, cleanString(shelf))
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var it Item
		if err = rows.Scan(&it.ID, &it.QRCode, &it.Name, &it.Shelf, &it.Position, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const insertScanSQL = `
INSERT INTO scan_history (operation, item_id, result, timestamp, session_uuid)
VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?)`

// RecordScan appends one scan outcome to the history. itemID may be nil
// for outcomes that produced no item.
func (s *Store) RecordScan(operation string, itemID *int64, result, sessionUUID string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var id sql.NullInt64
	if itemID != nil {
		id = sql.NullInt64{Int64: *itemID, Valid: true}
	}
	var session sql.NullString
	if sessionUUID != "" {
		session = sql.NullString{String: sessionUUID, Valid: true}
	}

	if _, err = db.Exec(insertScanSQL, operation, id, result, session); err != nil {
		return fmt.Errorf("inserting scan record: %w", err)
	}
	return nil
}

const selectRecentScansSQL = `
SELECT
    id,
    operation,
    item_id,
    result,
    timestamp,
    session_uuid
FROM scan_history
ORDER BY timestamp DESC, id DESC
LIMIT ?`

// RecentScans returns the newest history records, newest first.
func (s *Store) RecentScans(limit int) (records []ScanRecord, err error) {
	if limit <= 0 {
		limit = 10
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectRecentScansSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scan history: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var r ScanRecord
		if err = rows.Scan(&r.ID, &r.Operation, &r.ItemID, &r.Result, &r.Timestamp, &r.SessionUUID); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const selectLastCompletedSQL = `
SELECT
    id,
    session_uuid,
    start_time,
    end_time,
    status,
    report
FROM scan_sessions
WHERE
    status = 'completed'
ORDER BY end_time DESC
LIMIT 1`

const selectSessionScansSQL = `
SELECT
    id,
    operation,
    item_id,
    result,
    timestamp,
    session_uuid
FROM scan_history
WHERE
    session_uuid = ?
ORDER BY timestamp`

// LastCompletedSession returns the most recently completed session and its
// history, or (nil, nil, nil) when no session has completed.
func (s *Store) LastCompletedSession() (session *SessionRecord, records []ScanRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, nil, fmt.Errorf("getting read connection: %w", err)
	}

	var sess SessionRecord
	err = db.QueryRow(selectLastCompletedSQL).
		Scan(&sess.ID, &sess.UUID, &sess.StartTime, &sess.EndTime, &sess.Status, &sess.Report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scanning session: %w", err)
	}

	rows, err := db.Query(selectSessionScansSQL, sess.UUID)
	if err != nil {
		return nil, nil, fmt.Errorf("querying session history: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var r ScanRecord
		if err = rows.Scan(&r.ID, &r.Operation, &r.ItemID, &r.Result, &r.Timestamp, &r.SessionUUID); err != nil {
			return nil, nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return &sess, records, rows.Err()
}

// Close closes the database connections. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
