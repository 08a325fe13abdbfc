package target

import (
	"context"
	"fmt"
	"sync"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// MemoryClient is an in-process stand-in for the analytical store, used by
// tests and local development. It keeps append-only tables and resolves
// FINAL/versioned reads the way the real store does: highest version per
// primary key wins, insertion order breaks ties, and a winning negative-sign
// record means the key is gone.
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string][]Record

	// SignColumn is consulted for last-wins resolution; empty disables the
	// negative-sign tombstone rule.
	SignColumn string
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables:     make(map[string][]Record),
		SignColumn: "sign",
	}
}

// CreateTable registers an empty table, mirroring what migrations do against
// a real store.
func (c *MemoryClient) CreateTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[table]; !ok {
		c.tables[table] = nil
	}
}

// Rows returns a copy of everything ever inserted into the table, in
// insertion order.
func (c *MemoryClient) Rows(table string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]Record, len(c.tables[table]))
	copy(rows, c.tables[table])
	return rows
}

func (c *MemoryClient) Insert(ctx context.Context, table string, columns []string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		stored := make(Record, len(columns))
		for _, col := range columns {
			stored[col] = rec[col]
		}
		c.tables[table] = append(c.tables[table], stored)
	}
	return nil
}

func (c *MemoryClient) Select(ctx context.Context, q Query) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, ok := c.tables[q.Table]
	if !ok {
		return nil, xerror.Wrapf(ErrUnknownTable, xerror.Target, "select from %s failed", q.Table)
	}

	matched := make([]Record, 0)
	for _, rec := range rows {
		if !q.matches(rec) {
			continue
		}
		matched = append(matched, rec)
	}

	if q.VersionColumn != "" || q.Final {
		matched = c.resolveFinal(matched, q)
	}

	out := make([]Record, 0, len(matched))
	for _, rec := range matched {
		out = append(out, project(rec, q.Columns))
	}
	return out, nil
}

func (c *MemoryClient) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	// migrations drive table creation through CreateTable; other DDL is
	// accepted and ignored
	return nil
}

func (c *MemoryClient) Close() error {
	return nil
}

func (q Query) matches(rec Record) bool {
	if len(q.PKs) > 0 {
		pk := fmt.Sprintf("%v", rec[q.PKColumn])
		found := false
		for _, want := range q.PKs {
			if pk == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.DateColumn != "" {
		date := fmt.Sprintf("%v", rec[q.DateColumn])
		if q.MinDate != nil && date < fmt.Sprintf("%v", q.MinDate) {
			return false
		}
		if q.MaxDate != nil && date > fmt.Sprintf("%v", q.MaxDate) {
			return false
		}
	}
	return true
}

// resolveFinal keeps one live record per primary key: the highest version
// (later insert wins ties), dropped entirely if that winner carries a
// negative sign.
func (c *MemoryClient) resolveFinal(rows []Record, q Query) []Record {
	winners := make(map[string]Record)
	order := make([]string, 0)

	for _, rec := range rows {
		pk := fmt.Sprintf("%v", rec[q.PKColumn])
		cur, seen := winners[pk]
		if !seen {
			winners[pk] = rec
			order = append(order, pk)
			continue
		}
		if q.VersionColumn == "" || rec.IntValue(q.VersionColumn) >= cur.IntValue(q.VersionColumn) {
			winners[pk] = rec
		}
	}

	out := make([]Record, 0, len(winners))
	for _, pk := range order {
		rec := winners[pk]
		if c.SignColumn != "" {
			if sign, ok := rec[c.SignColumn]; ok && fmt.Sprintf("%v", sign) == "-1" {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func project(rec Record, columns []string) Record {
	if len(columns) == 0 {
		out := make(Record, len(rec))
		for k, v := range rec {
			out[k] = v
		}
		return out
	}
	out := make(Record, len(columns))
	for _, col := range columns {
		out[col] = rec[col]
	}
	return out
}
