package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.SyncBatchSize)
	assert.Equal(t, 5*time.Second, cfg.SyncDelayDuration())
	assert.Equal(t, 50*time.Second, cfg.LockTimeoutDuration())
	assert.Equal(t, "sqlite3", cfg.StorageBackend)
	assert.Equal(t, "default", cfg.DefaultDBAlias)
	assert.Equal(t, "olapsync", cfg.StatsdPrefix)
}

func TestLoadFile(t *testing.T) {
	content := `
sync_batch_size: 500
sync_delay: 2
lock_timeout: 60
storage_backend: memory
databases:
  default:
    driver: mysql
    dsn: "root@tcp(127.0.0.1:9030)/analytics"
  replica:
    driver: mysql
    dsn: "root@tcp(127.0.0.1:9031)/analytics"
    readonly: true
entities:
  - import_key: visits
    source_kind: visit
    source_table: visits
    source_pk_column: id
    targets:
      - table: visits_collapsed
        collapsing: true
        pk_column: id
        sign_column: sign
        version_column: version
        columns: [id, user_id, visited_at, sign, version]
`
	path := filepath.Join(t.TempDir(), "olapsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.SyncBatchSize)
	assert.Equal(t, time.Minute, cfg.LockTimeoutDuration())
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.True(t, cfg.Databases["replica"].Readonly)
	require.Len(t, cfg.Entities, 1)
	assert.Equal(t, "visits", cfg.Entities[0].ImportKey)
	require.Len(t, cfg.Entities[0].Targets, 1)
	assert.True(t, cfg.Entities[0].Targets[0].Collapsing)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olapsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_backend: etcd\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, xerror.IsCategory(err, xerror.Config))
}

func TestValidEntity(t *testing.T) {
	cfg := Config{
		SyncBatchSize:  1,
		SyncDelay:      1,
		StorageBackend: "memory",
		Entities:       []EntityConfig{{ImportKey: "visits"}},
	}
	err := cfg.Valid()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no targets")
}
