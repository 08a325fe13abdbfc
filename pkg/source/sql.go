package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// SQLProvider reads from one *sql.DB per shard.
type SQLProvider struct {
	shards map[string]*sql.DB
}

func NewSQLProvider() *SQLProvider {
	return &SQLProvider{shards: make(map[string]*sql.DB)}
}

func (p *SQLProvider) AddShard(shard, driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return xerror.Wrapf(err, xerror.Config, "open source shard %s failed", shard)
	}
	p.shards[shard] = db
	return nil
}

func (p *SQLProvider) Close() error {
	var firstErr error
	for _, db := range p.shards {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *SQLProvider) FetchRows(ctx context.Context, shard, table, pkColumn string, pks []string) ([]Row, error) {
	if len(pks) == 0 {
		return nil, nil
	}

	db, ok := p.shards[shard]
	if !ok {
		return nil, xerror.Errorf(xerror.Config, "no source shard configured for %s", shard)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pks)), ",")
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)", table, pkColumn, placeholders)
	args := make([]interface{}, 0, len(pks))
	for _, pk := range pks {
		args = append(args, pk)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerror.Wrapf(err, xerror.Source, "fetch rows from %s.%s failed", shard, table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, xerror.Wrap(err, xerror.Source, "read source columns failed")
	}

	var result []Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, xerror.Wrap(err, xerror.Source, "scan source row failed")
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, xerror.Wrap(err, xerror.Source, "iterate source rows failed")
	}
	return result, nil
}
