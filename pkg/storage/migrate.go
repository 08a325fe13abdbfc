package storage

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

//go:embed migrations/sqlite3/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// runMigrations brings the backing store schema up to date with the
// migrations embedded for the given driver ("sqlite3" or "mysql").
func runMigrations(db *sql.DB, driverName string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+driverName)
	if err != nil {
		return xerror.Wrap(err, xerror.Config, "load embedded migrations failed")
	}

	var driver database.Driver
	switch driverName {
	case "sqlite3":
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return xerror.Errorf(xerror.Config, "unsupported storage driver: %s", driverName)
	}
	if err != nil {
		return xerror.Wrapf(err, xerror.DB, "create %s migration driver failed", driverName)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return xerror.Wrap(err, xerror.DB, "create migrator failed")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return xerror.Wrap(err, xerror.DB, "apply storage migrations failed")
	}
	return nil
}
