// Package sqliteutil opens agent databases read-only through the pure-Go
// SQLite driver. The providers that use it treat a database exactly like a
// session file: unreadable means skipped, never fatal.
package sqliteutil

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// MaxRowBytes caps the total blob/text bytes a single query may hand back,
// mirroring the cap a subprocess reader would put on captured output.
const MaxRowBytes = 64 << 20

// OpenReadOnly opens a database file without taking any locks that could
// disturb the owning application.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro&immutable=1"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
