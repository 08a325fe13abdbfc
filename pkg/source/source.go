// Package source reads rows back from the sharded OLTP database. The syncer
// only ever fetches by primary key set scoped to one shard, so the contract
// stays deliberately narrow.
package source

import "context"

// Row is one source row keyed by column name.
type Row map[string]interface{}

// Provider fetches rows for a set of primary keys on one shard. Row order
// follows the underlying store's natural order.
type Provider interface {
	FetchRows(ctx context.Context, shard, table, pkColumn string, pks []string) ([]Row, error)
}
