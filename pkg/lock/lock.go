// Package lock provides per import key mutual exclusion between syncer
// processes, backed by the shared storage leases. A lease carries the holder
// pid so a lock abandoned by a crashed process can be reclaimed without
// waiting for its timeout.
package lock

import (
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/utils"
	"github.com/olapsync/olap_syncer/pkg/xerror"
	"github.com/olapsync/olap_syncer/pkg/xmetrics"
)

const defaultPollInterval = 100 * time.Millisecond

type Manager struct {
	db           storage.DB
	pollInterval time.Duration
}

func NewManager(db storage.DB) *Manager {
	return &Manager{
		db:           db,
		pollInterval: defaultPollInterval,
	}
}

// Lease is a held lock. Release it when the sync cycle finishes; a crashed
// holder's lease expires on its own or gets hard released by the next waiter.
type Lease struct {
	ImportKey string
	Token     string

	mgr *Manager
}

// Release is idempotent and never drops a lease that has been taken over by
// another holder in the meantime.
func (l *Lease) Release() error {
	return l.mgr.db.ReleaseLease(l.ImportKey, l.Token)
}

// Acquire blocks up to blockingTimeout for the lease on importKey. On
// timeout it inspects the current holder: if that process is gone the lease
// is hard released and acquisition retried once, otherwise the Lock category
// error is returned and the caller skips this cycle.
func (m *Manager) Acquire(importKey string, leaseTimeout, blockingTimeout time.Duration) (*Lease, error) {
	lease, err := m.tryAcquire(importKey, leaseTimeout, blockingTimeout)
	if err == nil {
		return lease, nil
	}
	if !xerror.IsCategory(err, xerror.Lock) {
		return nil, err
	}

	cur, getErr := m.db.GetLease(importKey)
	if getErr != nil {
		return nil, getErr
	}
	if cur == nil || utils.CheckPid(cur.HolderPid) {
		return nil, err
	}

	log.Warnf("lock %s held by dead pid %d, hard releasing", importKey, cur.HolderPid)
	xmetrics.LockHardRelease(importKey)
	if err := m.db.ForceReleaseLease(importKey); err != nil {
		return nil, err
	}

	return m.tryAcquire(importKey, leaseTimeout, blockingTimeout)
}

func (m *Manager) tryAcquire(importKey string, leaseTimeout, blockingTimeout time.Duration) (*Lease, error) {
	token := uuid.NewString()
	pid := os.Getpid()
	deadline := time.Now().Add(blockingTimeout)

	for {
		ok, err := m.db.TryAcquireLease(importKey, token, pid, leaseTimeout)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lease{ImportKey: importKey, Token: token, mgr: m}, nil
		}
		if !time.Now().Before(deadline) {
			xmetrics.LockTimeout(importKey)
			return nil, xerror.Errorf(xerror.Lock, "acquire lock %s timed out after %s", importKey, blockingTimeout)
		}
		time.Sleep(m.pollInterval)
	}
}
