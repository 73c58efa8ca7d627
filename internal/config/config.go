package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	IDB     IDBConfig     `mapstructure:"idb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// IDBConfig holds the item database client configuration
type IDBConfig struct {
	URLTemplate          string        `mapstructure:"url_template"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	MinWait              time.Duration `mapstructure:"min_wait"`
	MaxWait              time.Duration `mapstructure:"max_wait"`
	UserAgent            string        `mapstructure:"user_agent"`
	Proxies              []string      `mapstructure:"proxies"`
	MaxRequestsPerSecond int           `mapstructure:"max_requests_per_second"`
	MaxWorkers           int           `mapstructure:"max_workers"`
}

// RedisConfig holds Redis connection details for queue mode
type RedisConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	Database      int           `mapstructure:"database"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	StreamPrefix  string        `mapstructure:"stream_prefix"`
	MinIdleTime   time.Duration `mapstructure:"min_idle_time"`
	MaxRequeues   int           `mapstructure:"max_requeues"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or from config.yaml in the working
// directory when path is empty, with environment variable overrides
// (IDB_MAX_ATTEMPTS overrides idb.max_attempts). A missing default file is
// not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config.yaml found, using defaults and environment")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the client cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if err := validateURLTemplate(c.IDB.URLTemplate); err != nil {
		errs = append(errs, err)
	}
	if c.IDB.Timeout <= 0 {
		errs = append(errs, errors.New("idb.timeout must be positive"))
	}
	if c.IDB.MaxAttempts <= 0 {
		errs = append(errs, errors.New("idb.max_attempts must be positive"))
	}
	if c.IDB.MinWait < 0 || c.IDB.MaxWait < 0 {
		errs = append(errs, errors.New("idb.min_wait and idb.max_wait must not be negative"))
	}
	if c.IDB.MinWait > c.IDB.MaxWait {
		errs = append(errs, fmt.Errorf("idb.min_wait (%v) exceeds idb.max_wait (%v)", c.IDB.MinWait, c.IDB.MaxWait))
	}
	if c.IDB.MaxRequestsPerSecond <= 0 {
		errs = append(errs, errors.New("idb.max_requests_per_second must be positive"))
	}
	if c.IDB.MaxWorkers <= 0 {
		errs = append(errs, errors.New("idb.max_workers must be positive"))
	}
	if c.Redis.MaxRequeues < 0 {
		errs = append(errs, errors.New("redis.max_requeues must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateURLTemplate(template string) error {
	if strings.Count(template, "%") != 1 || strings.Count(template, "%d") != 1 {
		return fmt.Errorf("idb.url_template %q must contain exactly one %%d and no other verbs", template)
	}
	u, err := url.Parse(fmt.Sprintf(template, 1))
	if err != nil {
		return fmt.Errorf("idb.url_template %q: %w", template, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("idb.url_template %q must produce an absolute http(s) URL", template)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("idb.url_template", "https://items.jellyneo.net/item/%d/price-history/")
	v.SetDefault("idb.timeout", "30s")
	v.SetDefault("idb.max_attempts", 3)
	v.SetDefault("idb.min_wait", "1s")
	v.SetDefault("idb.max_wait", "3s")
	v.SetDefault("idb.user_agent", "")
	v.SetDefault("idb.proxies", []string{})
	v.SetDefault("idb.max_requests_per_second", 2)
	v.SetDefault("idb.max_workers", 4)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "idb_consumer")
	v.SetDefault("redis.stream_prefix", "idb:stream:")
	v.SetDefault("redis.min_idle_time", "2m")
	v.SetDefault("redis.max_requeues", 3)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
