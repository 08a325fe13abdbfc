package syncer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/lock"
	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/utils"
	"github.com/olapsync/olap_syncer/pkg/xerror"
	"github.com/olapsync/olap_syncer/pkg/xmetrics"
)

const defaultAcquireTimeout = time.Second

// Syncer runs sync cycles. One cycle claims a batch of operations under the
// entity lease, fetches the affected source rows, transforms and inserts
// them for every target, then commits the claim. Any failure after the claim
// leaves the operations in place for the next cycle.
type Syncer struct {
	db      storage.DB
	locks   *lock.Manager
	fetcher *Fetcher
	pool    *target.Pool

	// AcquireTimeout bounds how long a cycle waits for the entity lease
	// before treating it as busy.
	AcquireTimeout time.Duration
	// SkipWatermarkOnEmpty leaves the sync watermark untouched when a cycle
	// claims nothing, so an idle entity retries on every tick instead of
	// settling into its sync delay cadence.
	SkipWatermarkOnEmpty bool
}

func New(db storage.DB, locks *lock.Manager, fetcher *Fetcher, pool *target.Pool) *Syncer {
	return &Syncer{
		db:             db,
		locks:          locks,
		fetcher:        fetcher,
		pool:           pool,
		AcquireTimeout: defaultAcquireTimeout,
	}
}

// NeedSync reports whether the entity is due for a cycle: never when
// disabled, always when it has no watermark yet, otherwise once its sync
// delay has elapsed.
func (s *Syncer) NeedSync(entity *Entity) (bool, error) {
	if entity.Disabled {
		return false, nil
	}
	last, err := s.db.GetLastSyncTime(entity.ImportKey)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return time.Since(*last) >= entity.SyncDelay, nil
}

// SyncBatch runs one full cycle for the entity. A busy lease is not an
// error: another process is already syncing, so the cycle is skipped
// silently. Every other failure releases the lease without committing the
// claim and propagates.
func (s *Syncer) SyncBatch(ctx context.Context, entity *Entity) error {
	cycleStart := time.Now()

	lease, err := s.locks.Acquire(entity.ImportKey, entity.LockTimeout, s.AcquireTimeout)
	if err != nil {
		if xerror.IsCategory(err, xerror.Lock) {
			log.Debugf("entity %s is being synced elsewhere, skipping", entity.ImportKey)
			return nil
		}
		return err
	}
	defer func() {
		if err := lease.Release(); err != nil {
			log.Errorf("release lease for %s failed: %+v", entity.ImportKey, err)
		}
	}()

	claimed, err := s.runLocked(ctx, entity)
	if err != nil {
		return err
	}

	if claimed > 0 || !s.SkipWatermarkOnEmpty {
		if err := s.db.SetLastSyncTime(entity.ImportKey, time.Now()); err != nil {
			return err
		}
	}

	if depth, err := s.db.OperationsCount(entity.ImportKey); err == nil {
		xmetrics.QueueSize(entity.ImportKey, depth)
	}
	xmetrics.MeasureCycle(entity.ImportKey, cycleStart)
	return nil
}

func (s *Syncer) runLocked(ctx context.Context, entity *Entity) (int, error) {
	stepStart := time.Now()
	ops, err := s.db.GetOperations(entity.ImportKey, entity.BatchSize)
	if err != nil {
		return 0, err
	}
	xmetrics.ClaimedOperations(entity.ImportKey, len(ops))
	xmetrics.MeasureStep(entity.ImportKey, "claim", stepStart)

	if len(ops) > 0 {
		stepStart = time.Now()
		rows, err := s.fetcher.Fetch(ctx, entity, ops)
		if err != nil {
			return 0, err
		}
		xmetrics.MeasureStep(entity.ImportKey, "fetch", stepStart)

		stepStart = time.Now()
		// targets transform and insert independently off the shared rows
		_, err = utils.ExecParallel(entity.Targets, len(entity.Targets), func(tgt *Target) (int, error) {
			return s.syncTarget(ctx, entity, tgt, rows)
		})
		if err != nil {
			return 0, err
		}
		xmetrics.MeasureStep(entity.ImportKey, "import", stepStart)
	}

	stepStart = time.Now()
	if _, err := s.db.CommitOperations(entity.ImportKey); err != nil {
		return 0, err
	}
	xmetrics.MeasureStep(entity.ImportKey, "commit", stepStart)
	return len(ops), nil
}

func (s *Syncer) syncTarget(ctx context.Context, entity *Entity, tgt *Target, rows []source.Row) (int, error) {
	records, err := tgt.engine.Transform(ctx, rows)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	client, err := s.pool.PickWrite(tgt.WriteDBAliases)
	if err != nil {
		return 0, err
	}
	if err := client.Insert(ctx, tgt.Table, tgt.Columns, records); err != nil {
		return 0, err
	}
	xmetrics.ImportRows(entity.ImportKey, len(records))
	return len(records), nil
}
