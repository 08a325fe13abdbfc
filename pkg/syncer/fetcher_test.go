package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/source/mock_source"
	"github.com/olapsync/olap_syncer/pkg/storage"
)

func TestSplitLocator(t *testing.T) {
	shard, pk, err := splitLocator("default.42")
	require.NoError(t, err)
	assert.Equal(t, "default", shard)
	assert.Equal(t, "42", pk)

	// primary keys may contain dots, shard names never do
	shard, pk, err = splitLocator("shard2.a.b")
	require.NoError(t, err)
	assert.Equal(t, "shard2", shard)
	assert.Equal(t, "a.b", pk)

	_, _, err = splitLocator("no-dot")
	assert.Error(t, err)
	_, _, err = splitLocator(".42")
	assert.Error(t, err)
}

func TestFetchGroupsByShardAndDedups(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock_source.NewMockProvider(ctrl)

	entity := &Entity{
		ImportKey:      "visits",
		SourceTable:    "visits",
		SourcePKColumn: "id",
	}
	ops := []storage.Operation{
		{Kind: storage.OpInsert, Locator: "default.1"},
		{Kind: storage.OpInsert, Locator: "default.2"},
		{Kind: storage.OpInsert, Locator: "shard2.9"},
		{Kind: storage.OpUpdate, Locator: "default.1"}, // dedup
	}

	provider.EXPECT().
		FetchRows(gomock.Any(), "default", "visits", "id", []string{"1", "2"}).
		Return([]source.Row{{"id": "1"}, {"id": "2"}}, nil)
	provider.EXPECT().
		FetchRows(gomock.Any(), "shard2", "visits", "id", []string{"9"}).
		Return([]source.Row{{"id": "9"}}, nil)

	rows, err := NewFetcher(provider).Fetch(context.Background(), entity, ops)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFetchEmptyOps(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock_source.NewMockProvider(ctrl)

	rows, err := NewFetcher(provider).Fetch(context.Background(), &Entity{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchMalformedLocator(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mock_source.NewMockProvider(ctrl)

	_, err := NewFetcher(provider).Fetch(context.Background(), &Entity{}, []storage.Operation{
		{Kind: storage.OpInsert, Locator: "nodot"},
	})
	assert.Error(t, err)
}
