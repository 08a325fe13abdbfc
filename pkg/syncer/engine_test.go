package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/target"
)

func newTestPool() (*target.Pool, *target.MemoryClient) {
	client := target.NewMemoryClient()
	client.CreateTable("visits_dist")
	pool := target.NewPool("default")
	pool.Add("default", client)
	return pool, client
}

func collapsingTarget(t *testing.T, pool *target.Pool, versionColumn string) *Target {
	columns := []string{"id", "user_id", "created", "sign"}
	if versionColumn != "" {
		columns = append(columns, versionColumn)
	}
	tgt, err := buildTarget("visits", config.TargetConfig{
		Table:         "visits_dist",
		Columns:       columns,
		Collapsing:    true,
		PKColumn:      "id",
		SignColumn:    "sign",
		VersionColumn: versionColumn,
		DateColumn:    "created",
	}, pool)
	require.NoError(t, err)
	return tgt
}

func TestInsertOnlyTransform(t *testing.T) {
	pool, _ := newTestPool()
	tgt, err := buildTarget("visits", config.TargetConfig{
		Table:    "visits_dist",
		Columns:  []string{"id", "user_id"},
		PKColumn: "id",
	}, pool)
	require.NoError(t, err)

	rows := []source.Row{
		{"id": "1", "user_id": "alice", "secret": "dropped"},
		{"id": "2", "user_id": "bob"},
	}
	records, err := tgt.engine.Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, target.Record{"id": "1", "user_id": "alice"}, records[0])
	assert.Equal(t, target.Record{"id": "2", "user_id": "bob"}, records[1])
}

func TestCollapsingFirstInsert(t *testing.T) {
	pool, _ := newTestPool()
	tgt := collapsingTarget(t, pool, "ver")

	records, err := tgt.engine.Transform(context.Background(), []source.Row{
		{"id": "1", "user_id": "alice", "created": "2026-08-29"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0]["sign"])
	assert.Equal(t, int64(1), records[0]["ver"])
}

func TestCollapsingUpdateEmitsTombstoneFirst(t *testing.T) {
	pool, client := newTestPool()
	tgt := collapsingTarget(t, pool, "ver")
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, tgt.Table, tgt.Columns, []target.Record{
		{"id": "1", "user_id": "alice", "created": "2026-08-29", "sign": 1, "ver": int64(1)},
	}))

	records, err := tgt.engine.Transform(ctx, []source.Row{
		{"id": "1", "user_id": "alice2", "created": "2026-08-29"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	old, fresh := records[0], records[1]
	assert.Equal(t, -1, old["sign"])
	assert.Equal(t, int64(1), old.IntValue("ver"))
	assert.Equal(t, "alice", old["user_id"])

	assert.Equal(t, 1, fresh["sign"])
	assert.Equal(t, int64(2), fresh["ver"])
	assert.Equal(t, "alice2", fresh["user_id"])
}

func TestCollapsingVersionMonotonicity(t *testing.T) {
	pool, client := newTestPool()
	tgt := collapsingTarget(t, pool, "ver")
	ctx := context.Background()

	row := source.Row{"id": "1", "user_id": "alice", "created": "2026-08-29"}
	for want := int64(1); want <= 3; want++ {
		records, err := tgt.engine.Transform(ctx, []source.Row{row})
		require.NoError(t, err)
		fresh := records[len(records)-1]
		assert.Equal(t, want, fresh.IntValue("ver"))
		require.NoError(t, client.Insert(ctx, tgt.Table, tgt.Columns, records))
	}
}

func TestCollapsingWithoutVersionUsesFinal(t *testing.T) {
	pool, client := newTestPool()
	tgt := collapsingTarget(t, pool, "")
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, tgt.Table, tgt.Columns, []target.Record{
		{"id": "1", "user_id": "alice", "created": "2026-08-29", "sign": 1},
	}))

	records, err := tgt.engine.Transform(ctx, []source.Row{
		{"id": "1", "user_id": "alice2", "created": "2026-08-29"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, -1, records[0]["sign"])
	assert.Equal(t, "alice", records[0]["user_id"])
	assert.Equal(t, 1, records[1]["sign"])
	assert.Equal(t, "alice2", records[1]["user_id"])
}

type selectCountingClient struct {
	*target.MemoryClient
	selects int
}

func (c *selectCountingClient) Select(ctx context.Context, q target.Query) ([]target.Record, error) {
	c.selects++
	return c.MemoryClient.Select(ctx, q)
}

func TestCollapsingEmptyInputShortCircuits(t *testing.T) {
	client := &selectCountingClient{MemoryClient: target.NewMemoryClient()}
	pool := target.NewPool("default")
	pool.Add("default", client)
	tgt := collapsingTarget(t, pool, "ver")

	records, err := tgt.engine.Transform(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, client.selects)
}
