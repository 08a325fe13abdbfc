package syncer

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/utils"
	"github.com/olapsync/olap_syncer/pkg/xerror"
	"github.com/olapsync/olap_syncer/pkg/xmetrics"
)

const defaultTickInterval = time.Second

// Scheduler drives one loop goroutine per entity. Each tick checks NeedSync
// and runs a cycle when due. Cycle errors are logged and counted, never
// fatal to the loop; the failed batch is retried on a later tick because the
// claim was not committed.
type Scheduler struct {
	syncer   *Syncer
	entities []*Entity
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewScheduler(s *Syncer, entities []*Entity) *Scheduler {
	return &Scheduler{
		syncer:   s,
		entities: entities,
		interval: defaultTickInterval,
		stop:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	for _, entity := range s.entities {
		if entity.Disabled {
			log.Infof("entity %s is disabled, not scheduling", entity.ImportKey)
			continue
		}
		s.wg.Add(1)
		go s.entityLoop(entity)
	}
}

// Stop signals all loops and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) entityLoop(entity *Entity) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Infof("entity %s loop started, sync delay %s", entity.ImportKey, entity.SyncDelay)
	for {
		select {
		case <-s.stop:
			log.Infof("entity %s loop stopped", entity.ImportKey)
			return
		case <-ticker.C:
			utils.WithEntityLog(entity.ImportKey, func() {
				s.tick(entity)
			})
		}
	}
}

func (s *Scheduler) tick(entity *Entity) {
	need, err := s.syncer.NeedSync(entity)
	if err != nil {
		log.Errorf("check sync due failed: %+v", err)
		xmetrics.AddError(xerror.CategoryOf(err))
		return
	}
	if !need {
		return
	}

	if err := s.syncer.SyncBatch(context.Background(), entity); err != nil {
		log.Errorf("sync batch failed: %+v", err)
		xmetrics.AddError(xerror.CategoryOf(err))
	}
}
