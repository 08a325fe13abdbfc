// Package migration applies numbered schema migrations to the target
// databases and tracks what ran in a history table inside the store itself.
// Apps register their migrations explicitly at wiring time.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/xerror"
)

const HistoryTable = "olap_syncer_migrations"

const createHistoryDDL = `CREATE TABLE IF NOT EXISTS ` + HistoryTable + ` (
	app String,
	number UInt32,
	name String,
	applied DateTime
) ENGINE = MergeTree ORDER BY (app, number)`

// Operation is one step of a migration. Statement is run as-is; Run takes
// precedence when set. OnlyOn restricts the step to specific database
// aliases, the way replicated tables need their DDL on every replica while
// distributed wrappers live on one alias only.
type Operation struct {
	Statement string
	Run       func(ctx context.Context, client target.Client, alias string) error
	OnlyOn    []string
}

type Migration struct {
	Number     int
	Name       string
	Operations []Operation
}

// App is a named group of ordered migrations.
type App struct {
	Label      string
	Migrations []Migration
}

type Runner struct {
	pool      *target.Pool
	databases map[string]config.DatabaseConfig
	apps      map[string]*App
	order     []string
}

func NewRunner(pool *target.Pool, databases map[string]config.DatabaseConfig) *Runner {
	return &Runner{
		pool:      pool,
		databases: databases,
		apps:      make(map[string]*App),
	}
}

func (r *Runner) RegisterApp(app *App) error {
	if _, dup := r.apps[app.Label]; dup {
		return xerror.Errorf(xerror.Config, "duplicate migration app %s", app.Label)
	}
	sort.Slice(app.Migrations, func(i, j int) bool {
		return app.Migrations[i].Number < app.Migrations[j].Number
	})
	seen := make(map[int]struct{}, len(app.Migrations))
	for _, m := range app.Migrations {
		if _, dup := seen[m.Number]; dup {
			return xerror.Errorf(xerror.Config, "app %s has duplicate migration number %d", app.Label, m.Number)
		}
		seen[m.Number] = struct{}{}
	}
	r.apps[app.Label] = app
	r.order = append(r.order, app.Label)
	return nil
}

// Apps returns registered app labels in registration order.
func (r *Runner) Apps() []string {
	labels := make([]string, len(r.order))
	copy(labels, r.order)
	return labels
}

// MigrateApp applies the app's unapplied migrations on one database alias,
// in number order, optionally bounded by upTo (0 means no bound). Databases
// marked readonly or no-migrate are skipped. Returns whether anything was
// applied.
func (r *Runner) MigrateApp(ctx context.Context, appLabel, alias string, upTo int) (bool, error) {
	app, ok := r.apps[appLabel]
	if !ok {
		return false, xerror.Errorf(xerror.Config, "unknown migration app %s", appLabel)
	}

	if cfg, ok := r.databases[alias]; ok && (cfg.Readonly || cfg.NoMigrate) {
		log.Infof("database %s is readonly or no-migrate, skipping app %s", alias, appLabel)
		return false, nil
	}

	client, err := r.pool.Get(alias)
	if err != nil {
		return false, err
	}

	applied, err := r.appliedNumbers(ctx, client, appLabel)
	if err != nil {
		return false, err
	}

	appliedAny := false
	for _, m := range app.Migrations {
		if upTo > 0 && m.Number > upTo {
			break
		}
		if applied[m.Number] {
			continue
		}
		if err := r.apply(ctx, client, alias, appLabel, m); err != nil {
			return appliedAny, err
		}
		appliedAny = true
	}
	return appliedAny, nil
}

func (r *Runner) apply(ctx context.Context, client target.Client, alias, appLabel string, m Migration) error {
	log.Infof("applying %s.%04d_%s on %s", appLabel, m.Number, m.Name, alias)

	for _, op := range m.Operations {
		if len(op.OnlyOn) > 0 && !contains(op.OnlyOn, alias) {
			continue
		}
		var err error
		if op.Run != nil {
			err = op.Run(ctx, client, alias)
		} else {
			err = client.Exec(ctx, op.Statement)
		}
		if err != nil {
			return xerror.Wrapf(err, xerror.Target, "migration %s.%04d_%s failed on %s",
				appLabel, m.Number, m.Name, alias)
		}
	}

	if err := client.Exec(ctx, createHistoryDDL); err != nil {
		return err
	}
	return client.Insert(ctx, HistoryTable,
		[]string{"app", "number", "name", "applied"},
		[]target.Record{{
			"app":     appLabel,
			"number":  m.Number,
			"name":    m.Name,
			"applied": time.Now().Format("2006-01-02 15:04:05"),
		}})
}

// appliedNumbers reads the history table; a missing table or database reads
// as nothing applied yet.
func (r *Runner) appliedNumbers(ctx context.Context, client target.Client, appLabel string) (map[int]bool, error) {
	records, err := client.Select(ctx, target.Query{Table: HistoryTable})
	if err != nil {
		if errors.Is(err, target.ErrUnknownTable) {
			return map[int]bool{}, nil
		}
		return nil, err
	}

	applied := make(map[int]bool)
	for _, rec := range records {
		if fmt.Sprintf("%v", rec["app"]) != appLabel {
			continue
		}
		applied[int(rec.IntValue("number"))] = true
	}
	return applied, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
