package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// sqlStore is the driver independent part of the SQL backed store. The two
// dialects only differ in upsert syntax and row locking, injected below.
type sqlStore struct {
	db *sql.DB

	// " FOR UPDATE" on mysql, empty on sqlite where writers serialize anyway
	forUpdate string

	upsertClaimSQL     string
	upsertLeaseSQL     string
	upsertWatermarkSQL string
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *sqlStore) RegisterOperations(importKey string, kind OpKind, locators ...string) (int, error) {
	if !kind.Valid() {
		return 0, xerror.WithStack(ErrInvalidOperation)
	}
	if len(locators) == 0 {
		return 0, nil
	}

	rank := nowMillis()
	placeholders := make([]string, 0, len(locators))
	args := make([]interface{}, 0, len(locators)*4)
	for _, locator := range locators {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, importKey, string(kind), locator, rank)
	}

	query := "INSERT INTO operations (import_key, op, locator, rank_ms) VALUES " +
		strings.Join(placeholders, ", ")
	if _, err := s.db.Exec(query, args...); err != nil {
		return 0, xerror.Wrapf(err, xerror.DB, "register %d operations failed", len(locators))
	}
	return len(locators), nil
}

func (s *sqlStore) GetOperations(importKey string, count int) ([]Operation, error) {
	if count <= 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "begin claim tx failed")
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT seq, op, locator, rank_ms FROM operations WHERE import_key = ? AND rank_ms <= ? ORDER BY rank_ms, seq LIMIT ?",
		importKey, nowMillis(), count)
	if err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "select operations failed")
	}

	var (
		ops     []Operation
		maxSeq  int64
		maxRank int64
	)
	for rows.Next() {
		var (
			seq, rank int64
			op        string
			locator   string
		)
		if err := rows.Scan(&seq, &op, &locator, &rank); err != nil {
			rows.Close()
			return nil, xerror.Wrap(err, xerror.DB, "scan operation failed")
		}
		ops = append(ops, Operation{Kind: OpKind(op), Locator: locator})
		maxSeq, maxRank = seq, rank
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "iterate operations failed")
	}

	if len(ops) == 0 {
		// a stale watermark from an uncommitted claim must not cover
		// operations this cycle never saw
		if _, err := tx.Exec("DELETE FROM claims WHERE import_key = ?", importKey); err != nil {
			return nil, xerror.Wrap(err, xerror.DB, "clear claim watermark failed")
		}
	} else {
		if _, err := tx.Exec(s.upsertClaimSQL, importKey, maxRank, maxSeq); err != nil {
			return nil, xerror.Wrap(err, xerror.DB, "record claim watermark failed")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "commit claim tx failed")
	}
	return ops, nil
}

func (s *sqlStore) CommitOperations(importKey string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "begin commit tx failed")
	}
	defer tx.Rollback()

	var maxRank, maxSeq int64
	err = tx.QueryRow("SELECT max_rank, max_seq FROM claims WHERE import_key = ?"+s.forUpdate, importKey).
		Scan(&maxRank, &maxSeq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "read claim watermark failed")
	}

	res, err := tx.Exec(
		"DELETE FROM operations WHERE import_key = ? AND (rank_ms < ? OR (rank_ms = ? AND seq <= ?))",
		importKey, maxRank, maxRank, maxSeq)
	if err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "remove committed operations failed")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "rows affected failed")
	}

	if _, err := tx.Exec("DELETE FROM claims WHERE import_key = ?", importKey); err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "clear claim watermark failed")
	}
	if err := tx.Commit(); err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "commit tx failed")
	}
	return int(removed), nil
}

func (s *sqlStore) OperationsCount(importKey string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM operations WHERE import_key = ?", importKey).Scan(&count)
	if err != nil {
		return 0, xerror.Wrap(err, xerror.DB, "count operations failed")
	}
	return count, nil
}

func (s *sqlStore) FlushImportKey(importKey string) error {
	for _, table := range []string{"operations", "claims", "leases", "watermarks"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE import_key = ?", table)
		if _, err := s.db.Exec(query, importKey); err != nil {
			return xerror.Wrapf(err, xerror.DB, "flush %s failed", table)
		}
	}
	return nil
}

func (s *sqlStore) FlushAll() error {
	for _, table := range []string{"operations", "claims", "leases", "watermarks"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return xerror.Wrapf(err, xerror.DB, "flush %s failed", table)
		}
	}
	return nil
}

func (s *sqlStore) TryAcquireLease(importKey string, token string, holderPid int, timeout time.Duration) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, xerror.Wrap(err, xerror.DB, "begin lease tx failed")
	}
	defer tx.Rollback()

	now := nowMillis()
	var (
		curToken   string
		curExpires int64
	)
	err = tx.QueryRow("SELECT token, expires_at FROM leases WHERE import_key = ?"+s.forUpdate, importKey).
		Scan(&curToken, &curExpires)
	switch {
	case err == sql.ErrNoRows:
		// free
	case err != nil:
		return false, xerror.Wrap(err, xerror.DB, "read lease failed")
	case curExpires > now && curToken != token:
		return false, nil
	}

	expiresAt := now + timeout.Milliseconds()
	if _, err := tx.Exec(s.upsertLeaseSQL, importKey, holderPid, token, now, expiresAt); err != nil {
		return false, xerror.Wrap(err, xerror.DB, "write lease failed")
	}
	if err := tx.Commit(); err != nil {
		return false, xerror.Wrap(err, xerror.DB, "commit lease tx failed")
	}
	return true, nil
}

func (s *sqlStore) GetLease(importKey string) (*Lease, error) {
	var (
		holderPid            int
		token                string
		acquiredAt, expireAt int64
	)
	err := s.db.QueryRow(
		"SELECT holder_pid, token, acquired_at, expires_at FROM leases WHERE import_key = ?", importKey).
		Scan(&holderPid, &token, &acquiredAt, &expireAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "read lease failed")
	}

	return &Lease{
		ImportKey:  importKey,
		HolderPid:  holderPid,
		Token:      token,
		AcquiredAt: time.UnixMilli(acquiredAt),
		ExpiresAt:  time.UnixMilli(expireAt),
	}, nil
}

func (s *sqlStore) ReleaseLease(importKey string, token string) error {
	_, err := s.db.Exec("DELETE FROM leases WHERE import_key = ? AND token = ?", importKey, token)
	return xerror.Wrap(err, xerror.DB, "release lease failed")
}

func (s *sqlStore) ForceReleaseLease(importKey string) error {
	_, err := s.db.Exec("DELETE FROM leases WHERE import_key = ?", importKey)
	return xerror.Wrap(err, xerror.DB, "force release lease failed")
}

func (s *sqlStore) GetLastSyncTime(importKey string) (*time.Time, error) {
	var lastSyncMs int64
	err := s.db.QueryRow("SELECT last_sync_ms FROM watermarks WHERE import_key = ?", importKey).
		Scan(&lastSyncMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerror.Wrap(err, xerror.DB, "read sync watermark failed")
	}

	t := time.UnixMilli(lastSyncMs)
	return &t, nil
}

func (s *sqlStore) SetLastSyncTime(importKey string, t time.Time) error {
	_, err := s.db.Exec(s.upsertWatermarkSQL, importKey, t.UnixMilli())
	return xerror.Wrap(err, xerror.DB, "write sync watermark failed")
}
