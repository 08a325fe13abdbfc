package target

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// SQLClient drives a SQL-speaking analytical store. Rendering follows the
// ClickHouse dialect: FINAL for last-wins reads and LIMIT 1 BY for explicit
// per-key version resolution.
type SQLClient struct {
	db    *sql.DB
	alias string
}

func NewSQLClient(driver, dsn, alias string) (*SQLClient, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerror.Wrapf(err, xerror.Config, "open target db %s failed", alias)
	}
	return &SQLClient{db: db, alias: alias}, nil
}

func (c *SQLClient) Close() error {
	return c.db.Close()
}

func (c *SQLClient) Insert(ctx context.Context, table string, columns []string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*len(columns))
	for _, rec := range records {
		values = append(values, placeholders)
		for _, col := range columns {
			args = append(args, rec[col])
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(values, ","))
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return c.wrapErr(err, "insert into %s failed", table)
	}
	return nil
}

func (c *SQLClient) Select(ctx context.Context, q Query) ([]Record, error) {
	query, args := renderSelect(q)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.wrapErr(err, "select from %s failed", q.Table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, xerror.Wrap(err, xerror.Target, "read result columns failed")
	}

	var records []Record
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, xerror.Wrap(err, xerror.Target, "scan result row failed")
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = vals[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerror.Wrap(err, xerror.Target, "iterate result rows failed")
	}
	return records, nil
}

func (c *SQLClient) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
		return c.wrapErr(err, "exec on %s failed", c.alias)
	}
	return nil
}

func (c *SQLClient) wrapErr(err error, format string, args ...interface{}) error {
	if isUnknownTable(err) {
		return xerror.Wrapf(ErrUnknownTable, xerror.Target, format, args...)
	}
	return xerror.Wrapf(err, xerror.Target, format, args...)
}

func isUnknownTable(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"doesn't exist", // mysql 1146
		"no such table", // sqlite
		"UNKNOWN_TABLE", // clickhouse code 60
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func renderSelect(q Query) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(q.Columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(q.Table)
	if q.Final {
		sb.WriteString(" FINAL")
	}

	var conds []string
	if len(q.PKs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.PKs)), ",")
		conds = append(conds, fmt.Sprintf("%s IN (%s)", q.PKColumn, placeholders))
		for _, pk := range q.PKs {
			args = append(args, pk)
		}
	}
	if q.DateColumn != "" && q.MinDate != nil {
		conds = append(conds, fmt.Sprintf("%s >= ?", q.DateColumn))
		args = append(args, q.MinDate)
	}
	if q.DateColumn != "" && q.MaxDate != nil {
		conds = append(conds, fmt.Sprintf("%s <= ?", q.DateColumn))
		args = append(args, q.MaxDate)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if q.VersionColumn != "" {
		sb.WriteString(fmt.Sprintf(" ORDER BY %s, %s DESC LIMIT 1 BY %s",
			q.PKColumn, q.VersionColumn, q.PKColumn))
	}

	return sb.String(), args
}
