package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/config"
	"github.com/olapsync/olap_syncer/pkg/lock"
	"github.com/olapsync/olap_syncer/pkg/service"
	"github.com/olapsync/olap_syncer/pkg/source"
	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/syncer"
	"github.com/olapsync/olap_syncer/pkg/target"
	"github.com/olapsync/olap_syncer/pkg/utils"
	"github.com/olapsync/olap_syncer/pkg/version"
	"github.com/olapsync/olap_syncer/pkg/xmetrics"
)

type Flags struct {
	Port int

	Db_type     string
	Db_host     string
	Db_port     int
	Db_user     string
	Db_password string
}

var (
	configPath   string
	dbPath       string
	flags        Flags
	printVersion bool
)

func init() {
	flag.BoolVar(&printVersion, "version", false, "The program's version")

	flag.StringVar(&configPath, "config", "", "yaml config file")
	flag.StringVar(&dbPath, "db_dir", "olapsync.db", "sqlite3 db file")
	flag.StringVar(&flags.Db_type, "db_type", "", "backing db type, overrides config")
	flag.StringVar(&flags.Db_host, "db_host", "127.0.0.1", "backing db host")
	flag.IntVar(&flags.Db_port, "db_port", 3306, "backing db port")
	flag.StringVar(&flags.Db_user, "db_user", "root", "backing db user")
	flag.StringVar(&flags.Db_password, "db_password", "", "backing db password")

	flag.IntVar(&flags.Port, "port", 9290, "admin http port")
	flag.Parse()

	utils.InitLog()
}

func newBackingDB(cfg *config.Config) (storage.DB, error) {
	backend := cfg.StorageBackend
	if flags.Db_type != "" {
		backend = flags.Db_type
	}

	switch backend {
	case "sqlite3":
		return storage.NewSQLiteDB(dbPath)
	case "mysql":
		return storage.NewMysqlDB(flags.Db_host, flags.Db_port, flags.Db_user, flags.Db_password)
	case "memory":
		return storage.NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unknown backing db type %s", backend)
	}
}

func main() {
	if printVersion {
		fmt.Println(version.GetVersion())
		os.Exit(0)
	}

	log.Infof("olap syncer start, version: %s", version.GetVersion())

	// Step 1: load config
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config error: %+v", err)
	}

	// Step 2: open backing db
	db, err := newBackingDB(cfg)
	if err != nil {
		log.Fatalf("new backing db error: %+v", err)
	}

	// Step 3: open source shards and target databases
	provider := source.NewSQLProvider()
	for shard, sc := range cfg.Shards {
		if err := provider.AddShard(shard, sc.Driver, sc.DSN); err != nil {
			log.Fatalf("open source shard %s error: %+v", shard, err)
		}
	}

	pool := target.NewPool(cfg.DefaultDBAlias)
	for alias, dc := range cfg.Databases {
		client, err := target.NewSQLClient(dc.Driver, dc.DSN, alias)
		if err != nil {
			log.Fatalf("open target database %s error: %+v", alias, err)
		}
		pool.Add(alias, client)
	}

	// Step 4: build entities and the sync pipeline
	registry, err := syncer.BuildRegistry(cfg, db, pool)
	if err != nil {
		log.Fatalf("build entity registry error: %+v", err)
	}
	s := syncer.New(db, lock.NewManager(db), syncer.NewFetcher(provider), pool)
	scheduler := syncer.NewScheduler(s, registry.Entities())
	httpService := service.NewHttpServer(flags.Port, db, registry, s)

	// Step 5: http service start
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := httpService.Start(); err != nil {
			log.Fatalf("http service start error: %+v", err)
		}
	}()
	time.Sleep(1 * time.Second) // only for check http service start, if not, will log.Fatal

	// Step 6: start entity loops
	scheduler.Start()

	// Step 7: init metrics
	if err := xmetrics.InitGlobal(cfg.StatsdPrefix); err != nil {
		log.Fatalf("init metrics failed: %+v", err)
	}

	// Step 8: wait for all task done
	wg.Wait()
}
