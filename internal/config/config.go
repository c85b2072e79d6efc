// Package config holds the configuration of the aggregator binaries. Values
// come from flag defaults, then an optional YAML file, then the flags given
// on the command line.
package config

import (
	"bytes"
	"flag"
	"io"
	"os"
	"time"

	"github.com/drone/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/model"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	Source SourceConfig `yaml:"source"`
	Log    LogConfig    `yaml:"log"`

	ConfigFile      string `yaml:"-"`
	ConfigExpandEnv bool   `yaml:"-"`
}

type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TenantHeader    bool          `yaml:"require_tenant_header"`
	DefaultTenant   string        `yaml:"default_tenant"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type EngineConfig struct {
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`
	KPISampleSize        int           `yaml:"kpi_sample_size"`
	PartitionedWindows   bool          `yaml:"partitioned_windows"`
	QueryTimeout         time.Duration `yaml:"query_timeout"`
}

type SourceConfig struct {
	Retry   model.RetryConfig   `yaml:"retry"`
	Breaker model.BreakerConfig `yaml:"breaker"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.ConfigFile, "config.file", "", "YAML file to load.")
	f.BoolVar(&c.ConfigExpandEnv, "config.expand-env", false, "Expands ${var} in the config file according to the values of the environment variables.")

	c.Server.RegisterFlags(f)
	c.Store.RegisterFlags(f)
	c.Engine.RegisterFlags(f)
	c.Source.Retry.RegisterFlagsWithPrefix("source.", f)
	c.Source.Breaker.RegisterFlagsWithPrefix("source.", f)
	c.Log.RegisterFlags(f)
}

func (c *ServerConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.ListenAddress, "server.listen-address", ":8080", "HTTP listen address.")
	f.DurationVar(&c.ReadTimeout, "server.read-timeout", 30*time.Second, "HTTP read timeout.")
	f.DurationVar(&c.WriteTimeout, "server.write-timeout", time.Minute, "HTTP write timeout.")
	f.DurationVar(&c.ShutdownTimeout, "server.shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown.")
	f.BoolVar(&c.TenantHeader, "server.require-tenant-header", true, "Reject requests without an X-Scope-OrgID header.")
	f.StringVar(&c.DefaultTenant, "server.default-tenant", "default", "Tenant used when the tenant header is not required and missing.")
}

func (c *StoreConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Path, "store.path", "aggregator.db", "Path of the SQLite database.")
}

func (c *EngineConfig) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&c.MaxConcurrentFetches, "engine.max-concurrent-fetches", 16, "Maximum related-table fetches in flight per join resolution. 0 is unbounded.")
	f.IntVar(&c.KPISampleSize, "engine.kpi-sample-size", 1000, "Number of records read by KPI summaries.")
	f.BoolVar(&c.PartitionedWindows, "engine.partitioned-windows", false, "Compute window functions per partitionBy value.")
	f.DurationVar(&c.QueryTimeout, "engine.query-timeout", 30*time.Second, "Timeout of a single query. 0 disables it.")
}

func (c *LogConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Level, "log.level", "info", "Only log messages with the given severity or above. One of: debug, info, warn, error.")
	f.StringVar(&c.Format, "log.format", logging.FormatLogfmt, "Output format of log messages. One of: logfmt, json.")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return errors.New("server.listen-address must not be empty")
	}
	if !c.Server.TenantHeader && c.Server.DefaultTenant == "" {
		return errors.New("server.default-tenant is required when the tenant header is optional")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if c.Engine.MaxConcurrentFetches < 0 {
		return errors.New("engine.max-concurrent-fetches must not be negative")
	}
	if c.Engine.KPISampleSize <= 0 {
		return errors.New("engine.kpi-sample-size must be positive")
	}
	if c.Source.Retry.MaxRetries < 1 {
		return errors.New("source.retry.max-retries must be at least 1")
	}
	if c.Source.Retry.MaxBackoff < c.Source.Retry.MinBackoff {
		return errors.New("source.retry.max-backoff must not be lower than source.retry.min-backoff")
	}
	if c.Source.Breaker.Enabled && c.Source.Breaker.FailureThreshold < 1 {
		return errors.New("source.breaker.failure-threshold must be at least 1")
	}
	switch c.Log.Format {
	case logging.FormatLogfmt, logging.FormatJSON:
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Load parses args into a Config. The file named by -config.file is applied
// over the flag defaults, and the flags given in args win over the file.
func Load(name string, args []string) (*Config, error) {
	var cfg Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := LoadFile(cfg.ConfigFile, cfg.ConfigExpandEnv, &cfg); err != nil {
			return nil, err
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// LoadFile decodes the YAML file at path into dst, keeping the values of
// dst the file does not set. Unknown keys are an error.
func LoadFile(path string, expandEnv bool, dst *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "error reading config file")
	}

	if expandEnv {
		s, err := envsubst.EvalEnv(string(buf))
		if err != nil {
			return errors.Wrap(err, "failed to expand env vars from configFile")
		}
		buf = []byte(s)
	}

	return errors.Wrap(Unmarshal(buf, dst), "error parsing config file")
}

// Unmarshal strictly decodes YAML into dst. An empty document leaves dst unchanged.
func Unmarshal(buf []byte, dst *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
