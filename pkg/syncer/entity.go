// Package syncer holds the per entity sync pipeline: registering change
// operations, claiming them in batches, fetching the affected source rows,
// transforming them into signed/versioned target records and inserting them
// into the analytical store.
package syncer

import (
	"time"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// Target is one destination table of an entity. An entity may feed several
// targets from the same fetched rows.
type Target struct {
	Table          string
	Columns        []string
	Collapsing     bool
	PKColumn       string
	SignColumn     string
	VersionColumn  string
	DateColumn     string
	ReadDBAliases  []string
	WriteDBAliases []string

	engine Engine
}

// Entity binds one source table to its targets plus the knobs governing its
// sync cadence.
type Entity struct {
	ImportKey      string
	SourceKind     string
	SourceTable    string
	SourcePKColumn string
	BatchSize      int
	SyncDelay      time.Duration
	LockTimeout    time.Duration
	Disabled       bool
	Targets        []*Target
}

func buildEntity(cfg config.EntityConfig, global *config.Config, pool *target.Pool) (*Entity, error) {
	e := &Entity{
		ImportKey:      cfg.ImportKey,
		SourceKind:     cfg.SourceKind,
		SourceTable:    cfg.SourceTable,
		SourcePKColumn: cfg.SourcePKColumn,
		BatchSize:      cfg.BatchSize,
		Disabled:       cfg.Disabled,
	}
	if e.SourceKind == "" {
		e.SourceKind = e.ImportKey
	}
	if e.SourcePKColumn == "" {
		e.SourcePKColumn = "id"
	}
	if e.BatchSize <= 0 {
		e.BatchSize = global.SyncBatchSize
	}
	if cfg.SyncDelay > 0 {
		e.SyncDelay = time.Duration(cfg.SyncDelay) * time.Second
	} else {
		e.SyncDelay = global.SyncDelayDuration()
	}
	if cfg.LockTimeout > 0 {
		e.LockTimeout = time.Duration(cfg.LockTimeout) * time.Second
	} else {
		e.LockTimeout = global.LockTimeoutDuration()
	}

	for _, tc := range cfg.Targets {
		tgt, err := buildTarget(cfg.ImportKey, tc, pool)
		if err != nil {
			return nil, err
		}
		e.Targets = append(e.Targets, tgt)
	}
	return e, nil
}

func buildTarget(importKey string, cfg config.TargetConfig, pool *target.Pool) (*Target, error) {
	if cfg.Table == "" {
		return nil, xerror.Errorf(xerror.Config, "entity %s target has no table", importKey)
	}
	if len(cfg.Columns) == 0 {
		return nil, xerror.Errorf(xerror.Config, "entity %s target %s has no columns", importKey, cfg.Table)
	}

	tgt := &Target{
		Table:          cfg.Table,
		Columns:        cfg.Columns,
		Collapsing:     cfg.Collapsing,
		PKColumn:       cfg.PKColumn,
		SignColumn:     cfg.SignColumn,
		VersionColumn:  cfg.VersionColumn,
		DateColumn:     cfg.DateColumn,
		ReadDBAliases:  cfg.ReadDBAliases,
		WriteDBAliases: cfg.WriteDBAliases,
	}
	if tgt.PKColumn == "" {
		tgt.PKColumn = "id"
	}
	if tgt.Collapsing && tgt.SignColumn == "" {
		tgt.SignColumn = "sign"
	}
	tgt.engine = newEngine(tgt, pool)
	return tgt, nil
}

// columnsWithoutSign is the select list for the final version lookup: the
// compensating sign is applied client side on the returned records.
func (t *Target) columnsWithoutSign() []string {
	cols := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if col == t.SignColumn {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}
