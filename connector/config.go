package connector

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Konsultn-Engineering/linsql/dialect"
)

const (
	DefaultPoolSize           = 10
	DefaultAcquireTimeoutMs   = 5000
	DefaultStatementTimeoutMs = 30000
	DefaultRetryAttempts      = 3
	DefaultRetryBaseDelayMs   = 100
	DefaultRetryMaxDelayMs    = 2000
	DefaultRetryJitterPercent = 10

	// EnvPrefix marks environment overrides: LINSQL_POOL_SIZE sets pool_size
	// and a double underscore descends, LINSQL_RETRY__MAX_ATTEMPTS.
	EnvPrefix = "LINSQL_"
)

// Config is the connection manager configuration.
type Config struct {
	URL         string      `koanf:"url" yaml:"url" json:"url"`
	Credentials Credentials `koanf:"credentials" yaml:"credentials" json:"credentials"`
	Dialect     string      `koanf:"dialect" yaml:"dialect" json:"dialect"`
	// Driver names a database/sql driver. Empty picks the dialect's default.
	Driver             string      `koanf:"driver" yaml:"driver" json:"driver"`
	PoolSize           int         `koanf:"pool_size" yaml:"pool_size" json:"pool_size"`
	AcquireTimeoutMs   int         `koanf:"acquire_timeout_ms" yaml:"acquire_timeout_ms" json:"acquire_timeout_ms"`
	// StatementTimeoutMs bounds each statement. Zero takes the default; a
	// negative value runs statements without a deadline.
	StatementTimeoutMs int         `koanf:"statement_timeout_ms" yaml:"statement_timeout_ms" json:"statement_timeout_ms"`
	MaxLifetimeMs      int         `koanf:"max_lifetime_ms" yaml:"max_lifetime_ms" json:"max_lifetime_ms"`
	MaxIdleTimeMs      int         `koanf:"max_idle_time_ms" yaml:"max_idle_time_ms" json:"max_idle_time_ms"`
	Retry              RetryConfig `koanf:"retry" yaml:"retry" json:"retry"`
}

type Credentials struct {
	Username string `koanf:"username" yaml:"username" json:"username"`
	Password string `koanf:"password" yaml:"password" json:"-"`
}

// RetryConfig bounds retries of transient connection failures.
type RetryConfig struct {
	MaxAttempts   int `koanf:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelayMs   int `koanf:"base_delay_ms" yaml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMs    int `koanf:"max_delay_ms" yaml:"max_delay_ms" json:"max_delay_ms"`
	JitterPercent int `koanf:"jitter_percent" yaml:"jitter_percent" json:"jitter_percent"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.AcquireTimeoutMs == 0 {
		c.AcquireTimeoutMs = DefaultAcquireTimeoutMs
	}
	if c.StatementTimeoutMs == 0 {
		c.StatementTimeoutMs = DefaultStatementTimeoutMs
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = DefaultRetryBaseDelayMs
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = DefaultRetryMaxDelayMs
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return c.validatePool()
}

// validatePool checks everything but the URL, which a caller-supplied
// *sql.DB does not need.
func (c *Config) validatePool() error {
	if _, err := dialect.ByName(c.Dialect); err != nil {
		return err
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.AcquireTimeoutMs <= 0 {
		return fmt.Errorf("acquire_timeout_ms must be positive, got %d", c.AcquireTimeoutMs)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMs <= 0 || c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		return fmt.Errorf("retry delays must satisfy 0 < base_delay_ms <= max_delay_ms")
	}
	if c.Retry.JitterPercent < 0 || c.Retry.JitterPercent > 100 {
		return fmt.Errorf("retry.jitter_percent must be within 0..100, got %d", c.Retry.JitterPercent)
	}
	return nil
}

func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

// StatementTimeout is zero when statements run without a deadline, which
// a negative StatementTimeoutMs asks for.
func (c *Config) StatementTimeout() time.Duration {
	if c.StatementTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.StatementTimeoutMs) * time.Millisecond
}

// Load layers configuration: defaults, then the YAML file at path (if
// any), then LINSQL_* environment variables, then flags the user set
// explicitly. Flag names are kebab-case versions of the keys.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"pool_size":            DefaultPoolSize,
		"acquire_timeout_ms":   DefaultAcquireTimeoutMs,
		"statement_timeout_ms": DefaultStatementTimeoutMs,
		"retry.max_attempts":   DefaultRetryAttempts,
		"retry.base_delay_ms":  DefaultRetryBaseDelayMs,
		"retry.max_delay_ms":   DefaultRetryMaxDelayMs,
		"retry.jitter_percent": DefaultRetryJitterPercent,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps LINSQL_RETRY__MAX_ATTEMPTS to retry.max_attempts.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
