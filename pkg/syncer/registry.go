package syncer

import (
	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/xerror"
	"github.com/olapsync/olap_syncer/pkg/xmetrics"
)

// Registry maps source kinds to the entities listening on them. Application
// code reports changes by source kind; the registry fans the operations out
// to every enabled entity fed by that kind.
type Registry struct {
	db     storage.DB
	byKind map[string][]*Entity
	byKey  map[string]*Entity
	keys   []string
}

func NewRegistry(db storage.DB) *Registry {
	return &Registry{
		db:     db,
		byKind: make(map[string][]*Entity),
		byKey:  make(map[string]*Entity),
	}
}

func BuildRegistry(cfg *config.Config, db storage.DB, pool *target.Pool) (*Registry, error) {
	r := NewRegistry(db)
	for _, ec := range cfg.Entities {
		entity, err := buildEntity(ec, cfg, pool)
		if err != nil {
			return nil, err
		}
		if err := r.Add(entity); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(entity *Entity) error {
	if _, dup := r.byKey[entity.ImportKey]; dup {
		return xerror.Errorf(xerror.Config, "duplicate entity import key %s", entity.ImportKey)
	}
	r.byKey[entity.ImportKey] = entity
	r.byKind[entity.SourceKind] = append(r.byKind[entity.SourceKind], entity)
	r.keys = append(r.keys, entity.ImportKey)
	return nil
}

// Entities returns all registered entities in registration order.
func (r *Registry) Entities() []*Entity {
	entities := make([]*Entity, 0, len(r.keys))
	for _, key := range r.keys {
		entities = append(entities, r.byKey[key])
	}
	return entities
}

func (r *Registry) Get(importKey string) (*Entity, bool) {
	entity, ok := r.byKey[importKey]
	return entity, ok
}

// RegisterOperations records one operation per primary key for every enabled
// entity listening on sourceKind. Returns the total number of recorded
// operations across entities.
func (r *Registry) RegisterOperations(sourceKind string, kind storage.OpKind, shard string, pks ...string) (int, error) {
	if !kind.Valid() {
		return 0, xerror.Wrapf(storage.ErrInvalidOperation, xerror.Normal, "register on %s failed", sourceKind)
	}
	if len(pks) == 0 {
		return 0, nil
	}

	locators := make([]string, 0, len(pks))
	for _, pk := range pks {
		locators = append(locators, shard+"."+pk)
	}

	total := 0
	for _, entity := range r.byKind[sourceKind] {
		if entity.Disabled {
			continue
		}
		n, err := r.db.RegisterOperations(entity.ImportKey, kind, locators...)
		if err != nil {
			return total, err
		}
		xmetrics.RegisteredOperations(entity.ImportKey, string(kind), n)
		total += n
	}
	return total, nil
}
