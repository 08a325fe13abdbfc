package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/target"
)

type tracedOp struct {
	applied []string
}

func (o *tracedOp) step(name string) Operation {
	return Operation{Run: func(ctx context.Context, client target.Client, alias string) error {
		o.applied = append(o.applied, name+"@"+alias)
		return nil
	}}
}

func newTestRunner(t *testing.T, databases map[string]config.DatabaseConfig) (*Runner, *tracedOp) {
	pool := target.NewPool("default")
	pool.Add("default", target.NewMemoryClient())
	pool.Add("replica", target.NewMemoryClient())

	runner := NewRunner(pool, databases)
	trace := &tracedOp{}
	require.NoError(t, runner.RegisterApp(&App{
		Label: "visits",
		Migrations: []Migration{
			{Number: 2, Name: "add_index", Operations: []Operation{trace.step("add_index")}},
			{Number: 1, Name: "init", Operations: []Operation{trace.step("init")}},
			{Number: 3, Name: "distributed", Operations: []Operation{
				{Run: func(ctx context.Context, client target.Client, alias string) error {
					trace.applied = append(trace.applied, "distributed@"+alias)
					return nil
				}, OnlyOn: []string{"default"}},
			}},
		},
	}))
	return runner, trace
}

func TestMigrateAppOrderAndHistory(t *testing.T) {
	runner, trace := newTestRunner(t, nil)
	ctx := context.Background()

	applied, err := runner.MigrateApp(ctx, "visits", "default", 0)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"init@default", "add_index@default", "distributed@default"}, trace.applied)

	// second run finds everything in history
	applied, err = runner.MigrateApp(ctx, "visits", "default", 0)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, trace.applied, 3)
}

func TestMigrateAppUpToBound(t *testing.T) {
	runner, trace := newTestRunner(t, nil)
	ctx := context.Background()

	applied, err := runner.MigrateApp(ctx, "visits", "default", 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"init@default"}, trace.applied)

	// the rest applies once the bound is lifted
	applied, err = runner.MigrateApp(ctx, "visits", "default", 0)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"init@default", "add_index@default", "distributed@default"}, trace.applied)
}

func TestMigrateAppSkipsReadonly(t *testing.T) {
	runner, trace := newTestRunner(t, map[string]config.DatabaseConfig{
		"default": {Readonly: true},
		"replica": {NoMigrate: true},
	})
	ctx := context.Background()

	applied, err := runner.MigrateApp(ctx, "visits", "default", 0)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = runner.MigrateApp(ctx, "visits", "replica", 0)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, trace.applied)
}

func TestMigrateAppAliasRestriction(t *testing.T) {
	runner, trace := newTestRunner(t, nil)

	applied, err := runner.MigrateApp(context.Background(), "visits", "replica", 0)
	require.NoError(t, err)
	assert.True(t, applied)
	// the OnlyOn default step is skipped on the replica alias
	assert.Equal(t, []string{"init@replica", "add_index@replica"}, trace.applied)
}

func TestMigrateAppUnknown(t *testing.T) {
	runner, _ := newTestRunner(t, nil)
	_, err := runner.MigrateApp(context.Background(), "payments", "default", 0)
	assert.Error(t, err)
}

func TestRegisterAppDuplicates(t *testing.T) {
	runner, _ := newTestRunner(t, nil)
	assert.Error(t, runner.RegisterApp(&App{Label: "visits"}))
	assert.Error(t, runner.RegisterApp(&App{
		Label: "dup_numbers",
		Migrations: []Migration{
			{Number: 1, Name: "a"},
			{Number: 1, Name: "b"},
		},
	}))
	assert.Equal(t, []string{"visits"}, runner.Apps())
}
