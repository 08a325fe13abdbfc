package syncer

import (
	"context"
	"strings"

	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/utils"
	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// Fetcher resolves claimed operation locators back to source rows, one
// primary key set query per shard, shards fetched in parallel.
type Fetcher struct {
	provider source.Provider
}

func NewFetcher(provider source.Provider) *Fetcher {
	return &Fetcher{provider: provider}
}

// splitLocator splits "<shard>.<pk>" on the first dot; shard names never
// contain dots, primary keys may.
func splitLocator(locator string) (string, string, error) {
	shard, pk, ok := strings.Cut(locator, ".")
	if !ok || shard == "" || pk == "" {
		return "", "", xerror.Errorf(xerror.Normal, "malformed locator %q, want <shard>.<pk>", locator)
	}
	return shard, pk, nil
}

// Fetch groups the claimed locators by shard, de-duplicates primary keys
// within each shard and fetches all shards in parallel with one worker per
// distinct shard. Cross shard result order is unspecified.
func (f *Fetcher) Fetch(ctx context.Context, entity *Entity, ops []storage.Operation) ([]source.Row, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	pksByShard := make(map[string][]string)
	seen := make(map[string]struct{}, len(ops))
	var shards []string
	for _, op := range ops {
		shard, pk, err := splitLocator(op.Locator)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[op.Locator]; dup {
			continue
		}
		seen[op.Locator] = struct{}{}
		if _, ok := pksByShard[shard]; !ok {
			shards = append(shards, shard)
		}
		pksByShard[shard] = append(pksByShard[shard], pk)
	}

	perShard, err := utils.ExecParallel(shards, len(shards), func(shard string) ([]source.Row, error) {
		return f.provider.FetchRows(ctx, shard, entity.SourceTable, entity.SourcePKColumn, pksByShard[shard])
	})
	if err != nil {
		return nil, err
	}

	var rows []source.Row
	for _, shardRows := range perShard {
		rows = append(rows, shardRows...)
	}
	return rows, nil
}
