package storage

import (
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

type memOp struct {
	rank    int64
	seq     int64
	kind    OpKind
	locator string
}

func memOpLess(a, b memOp) bool {
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	return a.seq < b.seq
}

type claimMark struct {
	maxRank int64
	maxSeq  int64
}

// MemoryDB keeps everything in ordered in-memory structures. It is meant for
// tests and single process development runs; it honors the same claim and
// lease semantics as the SQL backends but obviously shares nothing across
// processes.
type MemoryDB struct {
	mu         sync.Mutex
	seq        int64
	ops        map[string]*btree.BTreeG[memOp]
	claims     map[string]claimMark
	leases     map[string]*Lease
	watermarks map[string]time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		ops:        make(map[string]*btree.BTreeG[memOp]),
		claims:     make(map[string]claimMark),
		leases:     make(map[string]*Lease),
		watermarks: make(map[string]time.Time),
	}
}

func (m *MemoryDB) queue(importKey string) *btree.BTreeG[memOp] {
	tree, ok := m.ops[importKey]
	if !ok {
		tree = btree.NewBTreeG(memOpLess)
		m.ops[importKey] = tree
	}
	return tree
}

func (m *MemoryDB) RegisterOperations(importKey string, kind OpKind, locators ...string) (int, error) {
	if !kind.Valid() {
		return 0, xerror.WithStack(ErrInvalidOperation)
	}
	if len(locators) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rank := nowMillis()
	tree := m.queue(importKey)
	for _, locator := range locators {
		m.seq++
		tree.Set(memOp{rank: rank, seq: m.seq, kind: kind, locator: locator})
	}
	return len(locators), nil
}

func (m *MemoryDB) GetOperations(importKey string, count int) ([]Operation, error) {
	if count <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := nowMillis()
	var (
		ops  []Operation
		mark claimMark
	)
	m.queue(importKey).Scan(func(op memOp) bool {
		if op.rank > now || len(ops) >= count {
			return false
		}
		ops = append(ops, Operation{Kind: op.kind, Locator: op.locator})
		mark = claimMark{maxRank: op.rank, maxSeq: op.seq}
		return true
	})

	if len(ops) == 0 {
		delete(m.claims, importKey)
		return nil, nil
	}
	m.claims[importKey] = mark
	return ops, nil
}

func (m *MemoryDB) CommitOperations(importKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mark, ok := m.claims[importKey]
	if !ok {
		return 0, nil
	}
	delete(m.claims, importKey)

	tree := m.queue(importKey)
	var victims []memOp
	tree.Scan(func(op memOp) bool {
		if op.rank > mark.maxRank || (op.rank == mark.maxRank && op.seq > mark.maxSeq) {
			return false
		}
		victims = append(victims, op)
		return true
	})
	for _, op := range victims {
		tree.Delete(op)
	}
	return len(victims), nil
}

func (m *MemoryDB) OperationsCount(importKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue(importKey).Len(), nil
}

func (m *MemoryDB) FlushImportKey(importKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.ops, importKey)
	delete(m.claims, importKey)
	delete(m.leases, importKey)
	delete(m.watermarks, importKey)
	return nil
}

func (m *MemoryDB) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = make(map[string]*btree.BTreeG[memOp])
	m.claims = make(map[string]claimMark)
	m.leases = make(map[string]*Lease)
	m.watermarks = make(map[string]time.Time)
	return nil
}

func (m *MemoryDB) TryAcquireLease(importKey string, token string, holderPid int, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if cur, ok := m.leases[importKey]; ok && !cur.Expired(now) && cur.Token != token {
		return false, nil
	}

	m.leases[importKey] = &Lease{
		ImportKey:  importKey,
		HolderPid:  holderPid,
		Token:      token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
	}
	return true, nil
}

func (m *MemoryDB) GetLease(importKey string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[importKey]
	if !ok {
		return nil, nil
	}
	copied := *lease
	return &copied, nil
}

func (m *MemoryDB) ReleaseLease(importKey string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[importKey]; ok && cur.Token == token {
		delete(m.leases, importKey)
	}
	return nil
}

func (m *MemoryDB) ForceReleaseLease(importKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.leases, importKey)
	return nil
}

func (m *MemoryDB) GetLastSyncTime(importKey string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.watermarks[importKey]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MemoryDB) SetLastSyncTime(importKey string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watermarks[importKey] = t
	return nil
}
