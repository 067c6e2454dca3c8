package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Snapshot backends accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTable  = "table"
)

// Log formats accepted by Config.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds application configuration.
type Config struct {
	Debug     bool           `mapstructure:"debug"`
	LogFormat string         `mapstructure:"log_format"`
	Listen    string         `mapstructure:"listen"`
	Backend   string         `mapstructure:"backend"`
	Snapshot  SnapshotConfig `mapstructure:"snapshot"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Persist   PersistConfig  `mapstructure:"persist"`
}

// SnapshotConfig names the persisted board state.
type SnapshotConfig struct {
	Name string `mapstructure:"name"`
}

// RedisConfig holds redis settings. An empty URL disables every redis
// backed feature except when the redis backend is selected.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	Channel   string        `mapstructure:"channel"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// StorageConfig holds Azure storage settings.
type StorageConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Table            string `mapstructure:"table"`
	Partition        string `mapstructure:"partition"`
	JournalQueue     string `mapstructure:"journal_queue"`
}

// PersistConfig tunes the background persister.
type PersistConfig struct {
	Buffer   int           `mapstructure:"buffer"`
	Debounce time.Duration `mapstructure:"debounce"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// HandoffTimeout is how long a request waits for buffer space before it
	// persists its batch itself. Zero never waits.
	HandoffTimeout time.Duration `mapstructure:"handoff_timeout"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// KANBAN_, e.g. KANBAN_REDIS_URL for redis.url.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("debug", false)
	v.SetDefault("log_format", LogFormatText)
	v.SetDefault("listen", ":8080")
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("snapshot.name", "main")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "board-events")
	v.SetDefault("redis.dedupe_ttl", 24*time.Hour)
	v.SetDefault("redis.cache_ttl", 10*time.Minute)
	v.SetDefault("storage.connection_string", "")
	v.SetDefault("storage.table", "boards")
	v.SetDefault("storage.partition", "main")
	v.SetDefault("storage.journal_queue", "")
	v.SetDefault("persist.buffer", 64)
	v.SetDefault("persist.debounce", 250*time.Millisecond)
	v.SetDefault("persist.timeout", 10*time.Second)
	v.SetDefault("persist.handoff_timeout", 50*time.Millisecond)

	if cfgPath := os.Getenv("KANBAN_CONFIG"); cfgPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.SetConfigName("kanban")
	}

	v.SetEnvPrefix("KANBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// Azure Functions custom handlers are told which port to bind.
	if port, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && port != "" {
		c.Listen = ":" + port
	}
	if dbg := os.Getenv("DEBUG"); dbg != "" && !c.Debug {
		c.Debug = strings.EqualFold(dbg, "true") || dbg == "1"
	}
	return c, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis backend requires redis.url"))
		}
	case BackendTable:
		if c.Storage.ConnectionString == "" || c.Storage.Table == "" || c.Storage.Partition == "" {
			errs = append(errs, errors.New("table backend requires storage.connection_string, storage.table and storage.partition"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if c.Snapshot.Name == "" {
		errs = append(errs, errors.New("snapshot.name must not be empty"))
	}
	if c.Storage.JournalQueue != "" && c.Storage.ConnectionString == "" {
		errs = append(errs, errors.New("storage.journal_queue requires storage.connection_string"))
	}
	if c.Redis.URL != "" && c.Redis.DedupeTTL <= 0 {
		errs = append(errs, errors.New("redis.dedupe_ttl must be greater than zero"))
	}
	if c.Persist.Buffer <= 0 {
		errs = append(errs, errors.New("persist.buffer must be greater than zero"))
	}
	if c.Persist.Debounce < 0 || c.Persist.Timeout <= 0 {
		errs = append(errs, errors.New("persist.debounce must not be negative and persist.timeout must be positive"))
	}
	if c.Persist.HandoffTimeout < 0 {
		errs = append(errs, errors.New("persist.handoff_timeout must not be negative"))
	}
	return errors.Join(errs...)
}
