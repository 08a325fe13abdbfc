package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

type SQLiteDB struct {
	sqlStore
}

func NewSQLiteDB(dbPath string) (DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, xerror.Wrapf(err, xerror.Config, "open sqlite3 db %s failed", dbPath)
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY storms
	db.SetMaxOpenConns(1)

	if err := runMigrations(db, "sqlite3"); err != nil {
		return nil, err
	}

	return &SQLiteDB{sqlStore{
		db: db,
		upsertClaimSQL: "INSERT INTO claims (import_key, max_rank, max_seq) VALUES (?, ?, ?) " +
			"ON CONFLICT(import_key) DO UPDATE SET max_rank = excluded.max_rank, max_seq = excluded.max_seq",
		upsertLeaseSQL: "INSERT INTO leases (import_key, holder_pid, token, acquired_at, expires_at) VALUES (?, ?, ?, ?, ?) " +
			"ON CONFLICT(import_key) DO UPDATE SET holder_pid = excluded.holder_pid, token = excluded.token, " +
			"acquired_at = excluded.acquired_at, expires_at = excluded.expires_at",
		upsertWatermarkSQL: "INSERT INTO watermarks (import_key, last_sync_ms) VALUES (?, ?) " +
			"ON CONFLICT(import_key) DO UPDATE SET last_sync_ms = excluded.last_sync_ms",
	}}, nil
}
