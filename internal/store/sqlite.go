package store

import (
	"context"
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/medscan-app/medscan/internal/common"
)

// SQLiteStore is the default durable backend.
type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite opens (or creates) a SQLite-backed store at the given DSN,
// e.g. "file:medscan.db". The schema is created if missing.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.NewAppError("STORE_OPEN", "open sqlite", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent readers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{sqlStore: newSQLStore(db, "sqlite", logger)}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
