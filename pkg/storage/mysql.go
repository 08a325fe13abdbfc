package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

const mysqlDBName = "olapsync"

type MysqlDB struct {
	sqlStore
}

func NewMysqlDB(host string, port int, user string, password string) (DB, error) {
	// ensure the bookkeeping database exists before connecting to it
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/", user, password, host, port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerror.Wrapf(err, xerror.Config, "open mysql %s:%d failed", host, port)
	}
	if _, err = db.Exec("CREATE DATABASE IF NOT EXISTS " + mysqlDBName); err != nil {
		db.Close()
		return nil, xerror.Wrapf(err, xerror.Config, "create database %s failed", mysqlDBName)
	}
	db.Close()

	dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?multiStatements=true", user, password, host, port, mysqlDBName)
	db, err = sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerror.Wrapf(err, xerror.Config, "open mysql db %s failed", mysqlDBName)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerror.Wrapf(err, xerror.Config, "connect mysql %s:%d failed", host, port)
	}

	if err := runMigrations(db, "mysql"); err != nil {
		return nil, err
	}

	return &MysqlDB{sqlStore{
		db:        db,
		forUpdate: " FOR UPDATE",
		upsertClaimSQL: "INSERT INTO claims (import_key, max_rank, max_seq) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE max_rank = VALUES(max_rank), max_seq = VALUES(max_seq)",
		upsertLeaseSQL: "INSERT INTO leases (import_key, holder_pid, token, acquired_at, expires_at) VALUES (?, ?, ?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE holder_pid = VALUES(holder_pid), token = VALUES(token), " +
			"acquired_at = VALUES(acquired_at), expires_at = VALUES(expires_at)",
		upsertWatermarkSQL: "INSERT INTO watermarks (import_key, last_sync_ms) VALUES (?, ?) " +
			"ON DUPLICATE KEY UPDATE last_sync_ms = VALUES(last_sync_ms)",
	}}, nil
}
