package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/migration"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/version"
)

var (
	configPath    string
	databaseAlias string
	migrationsDir string
)

func main() {
	cmd := &cobra.Command{
		Use:     "olap_migrate [app_label] [migration_number]",
		Short:   "Apply target-store schema migrations",
		Long:    "Applies outstanding schema migrations to the configured target databases.\nMigrations are numbered .sql files grouped per app under the migrations directory.",
		Args:    cobra.MaximumNArgs(2),
		Version: version.GetVersion(),
		RunE:    run,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "yaml config file")
	cmd.Flags().StringVar(&databaseAlias, "database", "", "migrate a single database alias")
	cmd.Flags().StringVar(&migrationsDir, "migrations-dir", "migrations", "directory with per-app migration files")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	appLabel := ""
	upTo := 0
	if len(args) > 0 {
		appLabel = args[0]
	}
	if len(args) > 1 {
		upTo, err = strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("migration number %q is not a number", args[1])
		}
	}

	pool := target.NewPool(cfg.DefaultDBAlias)
	defer pool.Close()
	for alias, dc := range cfg.Databases {
		client, err := target.NewSQLClient(dc.Driver, dc.DSN, alias)
		if err != nil {
			return err
		}
		pool.Add(alias, client)
	}

	runner := migration.NewRunner(pool, cfg.Databases)
	apps, err := loadApps(migrationsDir)
	if err != nil {
		return err
	}
	for _, app := range apps {
		if appLabel != "" && app.Label != appLabel {
			continue
		}
		if err := runner.RegisterApp(app); err != nil {
			return err
		}
	}
	if appLabel != "" && len(runner.Apps()) == 0 {
		return fmt.Errorf("no migrations found for app %s under %s", appLabel, migrationsDir)
	}

	aliases := []string{cfg.DefaultDBAlias}
	if databaseAlias != "" {
		aliases = []string{databaseAlias}
	} else if len(cfg.Databases) > 0 {
		aliases = maps.Keys(cfg.Databases)
		slices.Sort(aliases)
	}

	header := color.New(color.Bold)
	appliedAny := false
	for _, alias := range aliases {
		header.Printf("Database %s:\n", alias)
		for _, label := range runner.Apps() {
			applied, err := runner.MigrateApp(context.Background(), label, alias, upTo)
			if err != nil {
				return err
			}
			if applied {
				color.Green("  %s: migrated\n", label)
				appliedAny = true
			} else {
				fmt.Printf("  %s: up to date\n", label)
			}
		}
	}
	if !appliedAny {
		fmt.Println("No migrations to apply.")
	}
	return nil
}

// loadApps reads <dir>/<app>/<NNNN>_<name>.sql files into migration apps.
func loadApps(dir string) ([]*migration.App, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var apps []*migration.App
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		app := &migration.App{Label: entry.Name()}
		files, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
				continue
			}
			number, name, ok := parseMigrationName(file.Name())
			if !ok {
				return nil, fmt.Errorf("bad migration filename %s/%s, want <number>_<name>.sql", entry.Name(), file.Name())
			}
			body, err := os.ReadFile(filepath.Join(dir, entry.Name(), file.Name()))
			if err != nil {
				return nil, err
			}
			m := migration.Migration{Number: number, Name: name}
			for _, stmt := range splitStatements(string(body)) {
				m.Operations = append(m.Operations, migration.Operation{Statement: stmt})
			}
			app.Migrations = append(app.Migrations, m)
		}
		if len(app.Migrations) > 0 {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

func parseMigrationName(filename string) (int, string, bool) {
	base := strings.TrimSuffix(filename, ".sql")
	numStr, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", false
	}
	number, err := strconv.Atoi(numStr)
	if err != nil || number <= 0 {
		return 0, "", false
	}
	return number, name, true
}

func splitStatements(body string) []string {
	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
