package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix selects the environment overrides; "__" separates nested keys,
// so TRAJSTORE_MONGO__URI sets mongo.uri.
const EnvPrefix = "TRAJSTORE_"

// Config is the top-level application config.
type Config struct {
	Mongo       MongoConfig       `koanf:"mongo"`
	Collections CollectionsConfig `koanf:"collections"`
	Schema      SchemaConfig      `koanf:"schema"`
	Transform   TransformConfig   `koanf:"transform"`
	Server      ServerConfig      `koanf:"server"`
	Ledger      LedgerConfig      `koanf:"ledger"`
	Export      ExportConfig      `koanf:"export"`
	Log         LogConfig         `koanf:"log"`
}

type MongoConfig struct {
	URI                string        `koanf:"uri"`
	Database           string        `koanf:"database"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout"`
	ConfigurationID    string        `koanf:"configuration_id"`
	ComputeNodeID      int           `koanf:"compute_node_id"`
	MetadataCollection string        `koanf:"metadata_collection"`
	Protected          []string      `koanf:"protected"`
}

// CollectionsConfig names the collections typed records are written to.
type CollectionsConfig struct {
	Raw        string `koanf:"raw"`
	Stitched   string `koanf:"stitched"`
	Reconciled string `koanf:"reconciled"`
}

// SchemaConfig points at the YAML validator specs, one file per collection.
type SchemaConfig struct {
	Path         string `koanf:"path"`
	ApplyOnStart bool   `koanf:"apply_on_start"`
}

type TransformConfig struct {
	Source            string        `koanf:"source"`
	Output            string        `koanf:"output"`
	Directions        []int         `koanf:"directions"`
	PartitionKey      string        `koanf:"partition_key"`
	Increment         float64       `koanf:"increment"`
	Chunks            int           `koanf:"chunks"`
	Period            float64       `koanf:"period"`
	StaleThreshold    int64         `koanf:"stale_threshold"`
	Extended          bool          `koanf:"extended"`
	LatePolicy        string        `koanf:"late_policy"` // drop | write
	BatchSize         int           `koanf:"batch_size"`
	WriterCount       int           `koanf:"writer_count"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryInterval     time.Duration `koanf:"retry_interval"`
	RoadSegmentLength float64       `koanf:"road_segment_length"`
	MaxSamples        int           `koanf:"max_samples"`
}

type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	MaxBodySizeMB     int           `koanf:"max_body_size_mb"`
	Mode              string        `koanf:"mode"` // debug | release
	MaxRangeDocuments int           `koanf:"max_range_documents"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// LedgerConfig configures the optional Postgres run ledger.
type LedgerConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ExportConfig struct {
	Compression  string `koanf:"compression"` // zstd | snappy | none
	RowGroupSize int    `koanf:"row_group_size"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Mongo.URI) == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if strings.TrimSpace(c.Mongo.Database) == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Mongo.ConnectTimeout <= 0 {
		return fmt.Errorf("mongo.connect_timeout must be > 0")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if c.Server.MaxRangeDocuments <= 0 {
		return fmt.Errorf("server.max_range_documents must be > 0")
	}

	if c.Schema.ApplyOnStart {
		if strings.TrimSpace(c.Schema.Path) == "" {
			return fmt.Errorf("schema.path is required when schema.apply_on_start is set")
		}
		if _, err := os.Stat(c.Schema.Path); err != nil {
			return fmt.Errorf("schema.path %q is not accessible: %w", c.Schema.Path, err)
		}
	}

	t := c.Transform
	if t.Period <= 0 {
		return fmt.Errorf("transform.period must be > 0")
	}
	if t.Increment < 0 {
		return fmt.Errorf("transform.increment must be >= 0")
	}
	if t.Chunks <= 0 {
		return fmt.Errorf("transform.chunks must be > 0")
	}
	if t.StaleThreshold < 0 {
		return fmt.Errorf("transform.stale_threshold must be >= 0")
	}
	for _, d := range t.Directions {
		if d != 1 && d != -1 {
			return fmt.Errorf("invalid transform.directions entry %d (must be 1 or -1)", d)
		}
	}
	if t.LatePolicy != "drop" && t.LatePolicy != "write" {
		return fmt.Errorf("invalid transform.late_policy %q (must be drop or write)", t.LatePolicy)
	}
	if t.BatchSize <= 0 {
		return fmt.Errorf("transform.batch_size must be > 0")
	}
	if t.WriterCount <= 0 {
		return fmt.Errorf("transform.writer_count must be > 0")
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("transform.max_retries must be >= 0")
	}
	if t.MaxSamples <= 0 {
		return fmt.Errorf("transform.max_samples must be > 0")
	}

	if c.Ledger.Enabled {
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			return fmt.Errorf("ledger.dsn is required when the ledger is enabled")
		}
		if c.Ledger.MaxOpenConns <= 0 {
			return fmt.Errorf("ledger.max_open_conns must be > 0")
		}
		if c.Ledger.MaxIdleConns <= 0 {
			return fmt.Errorf("ledger.max_idle_conns must be > 0")
		}
	}

	switch c.Export.Compression {
	case "zstd", "snappy", "none":
	default:
		return fmt.Errorf("unsupported export.compression %q", c.Export.Compression)
	}
	if c.Export.RowGroupSize <= 0 {
		return fmt.Errorf("export.row_group_size must be > 0")
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// Load parses config from defaults, then file, then env, and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"mongo.uri":                  "mongodb://localhost:27017",
		"mongo.database":             "trajectories",
		"mongo.connect_timeout":      "10s",
		"mongo.configuration_id":     "",
		"mongo.compute_node_id":      0,
		"mongo.metadata_collection":  "__METADATA__",
		"collections.raw":            "raw_trajectories",
		"collections.stitched":       "stitched_trajectories",
		"collections.reconciled":     "reconciled_trajectories",
		"schema.path":                "./schemas",
		"schema.apply_on_start":      false,
		"transform.partition_key":    "first_timestamp",
		"transform.directions":       []int{1, -1},
		"transform.increment":        0,
		"transform.chunks":           1,
		"transform.period":           0.04,
		"transform.stale_threshold":  500,
		"transform.extended":         false,
		"transform.late_policy":      "drop",
		"transform.batch_size":       1000,
		"transform.writer_count":     4,
		"transform.max_retries":      5,
		"transform.retry_interval":   "200ms",
		"transform.max_samples":      1000000,
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"server.max_body_size_mb":    16,
		"server.mode":                "release",
		"server.max_range_documents": 10000,
		"server.shutdown_timeout":    "10s",
		"ledger.enabled":             false,
		"ledger.max_open_conns":      10,
		"ledger.max_idle_conns":      5,
		"ledger.auto_migrate":        true,
		"export.compression":         "zstd",
		"export.row_group_size":      100000,
		"log.level":                  "info",
		"log.format":                 "text",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
