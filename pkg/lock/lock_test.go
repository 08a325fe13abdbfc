package lock

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/xerror"
)

func newTestManager(t *testing.T) (*Manager, storage.DB) {
	db := storage.NewMemoryDB()
	mgr := NewManager(db)
	mgr.pollInterval = time.Millisecond
	return mgr, db
}

func TestAcquireRelease(t *testing.T) {
	mgr, db := newTestManager(t)

	lease, err := mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "visits", lease.ImportKey)

	held, err := db.GetLease("visits")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, os.Getpid(), held.HolderPid)

	require.NoError(t, lease.Release())
	held, err = db.GetLease("visits")
	require.NoError(t, err)
	assert.Nil(t, held)

	// release twice is fine
	require.NoError(t, lease.Release())
}

func TestAcquireBlocksUntilReleased(t *testing.T) {
	mgr, _ := newTestManager(t)

	first, err := mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		assert.NoError(t, first.Release())
		close(released)
	}()

	second, err := mgr.Acquire("visits", time.Minute, time.Second)
	require.NoError(t, err)
	<-released
	require.NoError(t, second.Release())
}

func TestAcquireTimeoutWithLiveHolder(t *testing.T) {
	mgr, _ := newTestManager(t)

	// the current process holds the lease, so it is never hard released
	first, err := mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)
	defer first.Release()

	_, err = mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, xerror.IsCategory(err, xerror.Lock))
}

func TestAcquireHardReleasesDeadHolder(t *testing.T) {
	mgr, db := newTestManager(t)

	// a pid that cannot exist on linux stands in for a crashed process
	ok, err := db.TryAcquireLease("visits", "stale-token", 1<<30, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	lease, err := mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	held, err := db.GetLease("visits")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, lease.Token, held.Token)
	assert.Equal(t, os.Getpid(), held.HolderPid)

	require.NoError(t, lease.Release())
}

func TestIndependentKeysDoNotContend(t *testing.T) {
	mgr, _ := newTestManager(t)

	a, err := mgr.Acquire("visits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)
	b, err := mgr.Acquire("hits", time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
}
