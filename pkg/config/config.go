package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

// Process configuration. Values come from an optional yaml file and from the
// environment with the OLAPSYNC_ prefix (OLAPSYNC_SYNC_BATCH_SIZE, ...).

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Readonly databases are skipped by the migration runner and never
	// selected for writes.
	Readonly  bool `mapstructure:"readonly"`
	NoMigrate bool `mapstructure:"no_migrate"`
}

type ShardConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TargetConfig struct {
	Table          string   `mapstructure:"table"`
	Columns        []string `mapstructure:"columns"`
	Collapsing     bool     `mapstructure:"collapsing"`
	PKColumn       string   `mapstructure:"pk_column"`
	SignColumn     string   `mapstructure:"sign_column"`
	VersionColumn  string   `mapstructure:"version_column"`
	DateColumn     string   `mapstructure:"date_column"`
	ReadDBAliases  []string `mapstructure:"read_db_aliases"`
	WriteDBAliases []string `mapstructure:"write_db_aliases"`
}

type EntityConfig struct {
	ImportKey      string         `mapstructure:"import_key"`
	SourceKind     string         `mapstructure:"source_kind"`
	SourceTable    string         `mapstructure:"source_table"`
	SourcePKColumn string         `mapstructure:"source_pk_column"`
	BatchSize      int            `mapstructure:"batch_size"`
	SyncDelay      int            `mapstructure:"sync_delay"`   // seconds
	LockTimeout    int            `mapstructure:"lock_timeout"` // seconds
	Disabled       bool           `mapstructure:"disabled"`
	Targets        []TargetConfig `mapstructure:"targets"`
}

type Config struct {
	SyncBatchSize  int    `mapstructure:"sync_batch_size"`
	SyncDelay      int    `mapstructure:"sync_delay"`   // seconds
	LockTimeout    int    `mapstructure:"lock_timeout"` // seconds, 0 means 10x sync delay
	StorageBackend string `mapstructure:"storage_backend"`
	DefaultDBAlias string `mapstructure:"default_db_alias"`
	StatsdPrefix   string `mapstructure:"statsd_prefix"`

	Databases map[string]DatabaseConfig `mapstructure:"databases"`
	Shards    map[string]ShardConfig    `mapstructure:"shards"`
	Entities  []EntityConfig            `mapstructure:"entities"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync_batch_size", 10000)
	v.SetDefault("sync_delay", 5)
	v.SetDefault("lock_timeout", 0)
	v.SetDefault("storage_backend", "sqlite3")
	v.SetDefault("default_db_alias", "default")
	v.SetDefault("statsd_prefix", "olapsync")
}

// Load reads configuration from the given file path. An empty path loads
// defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OLAPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, xerror.Wrapf(err, xerror.Config, "read config file %s failed", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerror.Wrap(err, xerror.Config, "unmarshal config failed")
	}

	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Valid() error {
	switch c.StorageBackend {
	case "sqlite3", "mysql", "memory":
	default:
		return xerror.Errorf(xerror.Config, "unknown storage backend: %s", c.StorageBackend)
	}

	if c.SyncBatchSize <= 0 {
		return xerror.New(xerror.Config, "sync_batch_size must be positive")
	}
	if c.SyncDelay <= 0 {
		return xerror.New(xerror.Config, "sync_delay must be positive")
	}

	for _, e := range c.Entities {
		if e.ImportKey == "" {
			return xerror.New(xerror.Config, "entity import_key is empty")
		}
		if len(e.Targets) == 0 {
			return xerror.Errorf(xerror.Config, "entity %s has no targets", e.ImportKey)
		}
	}
	return nil
}

func (c *Config) SyncDelayDuration() time.Duration {
	return time.Duration(c.SyncDelay) * time.Second
}

// LockTimeoutDuration defaults to 10x the sync delay, which keeps the lease
// expiry comfortably above the expected worst case cycle duration.
func (c *Config) LockTimeoutDuration() time.Duration {
	if c.LockTimeout > 0 {
		return time.Duration(c.LockTimeout) * time.Second
	}
	return 10 * c.SyncDelayDuration()
}
