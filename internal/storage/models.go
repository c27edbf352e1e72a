package storage

import (
	"database/sql"
	"time"
)

// Item is one inventory record keyed by its embedded code.
type Item struct {
	ID        int64
	QRCode    string
	Name      string
	Shelf     string
	Position  string
	Timestamp time.Time
}

// SessionRecord is one scanning flight's row in scan_sessions.
type SessionRecord struct {
	ID        int64
	UUID      string
	StartTime time.Time
	EndTime   sql.NullTime
	Status    string
	Report    sql.NullString
}

// ScanRecord is one scan_history row.
type ScanRecord struct {
	ID          int64
	Operation   string
	ItemID      sql.NullInt64
	Result      string
	Timestamp   time.Time
	SessionUUID sql.NullString
}
