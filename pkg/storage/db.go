package storage

import (
	"errors"
	"time"
)

var (
	ErrInvalidOperation = errors.New("operation must be one of [insert, update, delete]")
)

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

func (k OpKind) Valid() bool {
	switch k {
	case OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// Operation is one recorded change intent. Locator is a shard qualified
// primary key, encoded as "<shard>.<pk>".
type Operation struct {
	Kind    OpKind `json:"kind"`
	Locator string `json:"locator"`
}

// Lease is the persisted side of the per entity mutual exclusion token.
type Lease struct {
	ImportKey  string
	HolderPid  int
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// DB is the store shared by all syncer processes. Implementations must keep
// every method safe for concurrent use from independent processes, which is
// why all mutation goes through atomic statements or transactions instead of
// client side read-modify-write.
//
// The operation log for an import key grows only by append and shrinks only
// by prefix removal bounded by the claim watermark recorded at GetOperations
// time. Only the lease holder may call GetOperations/CommitOperations for a
// key; RegisterOperations may race freely.
type DB interface {
	// Append operations, each scored with the current timestamp. Returns
	// the number of appended operations.
	RegisterOperations(importKey string, kind OpKind, locators ...string) (int, error)
	// Claim up to count oldest operations and remember the claim watermark.
	GetOperations(importKey string, count int) ([]Operation, error)
	// Remove the operations covered by the last claim watermark, clear the
	// watermark and return the removed count. No-op without a watermark.
	CommitOperations(importKey string) (int, error)
	// Current queue depth, observability only.
	OperationsCount(importKey string) (int, error)
	// Administrative wipe of one import key, or of everything.
	FlushImportKey(importKey string) error
	FlushAll() error

	// Acquire the lease if it is free or expired. The token identifies the
	// acquirer so release is idempotent and never drops someone else's lease.
	TryAcquireLease(importKey string, token string, holderPid int, timeout time.Duration) (bool, error)
	// Current lease, nil if none is held.
	GetLease(importKey string) (*Lease, error)
	ReleaseLease(importKey string, token string) error
	ForceReleaseLease(importKey string) error

	// Last successful sync time, nil if the entity has never synced.
	GetLastSyncTime(importKey string) (*time.Time, error)
	SetLastSyncTime(importKey string, t time.Time) error
}
