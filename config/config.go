package config

import (
	"strings"
	"time"

	"stagebased/errors"

	"github.com/spf13/viper"
)

// ServiceConfig describes one remote collaborator.
type ServiceConfig struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
}

// WorkersConfig sizes the in-process task queue.
type WorkersConfig struct {
	Count     int           `mapstructure:"count"`
	QueueSize int           `mapstructure:"queue_size"`
	RetryMax  int           `mapstructure:"retry_max"`
	RetryBase time.Duration `mapstructure:"retry_base"`
	Eager     bool          `mapstructure:"eager"`
}

type Configuration struct {
	ApiPort  string `mapstructure:"api_port"`
	LogPath  string `mapstructure:"log_path"`
	LogLevel string `mapstructure:"log_level"`

	Database    string `mapstructure:"database"` // "sqlite3" or "postgres"
	DbHost      string `mapstructure:"db_host"`
	DbPort      string `mapstructure:"db_port"`
	DbUser      string `mapstructure:"db_user"`
	DbName      string `mapstructure:"db_name"`
	DbPass      string `mapstructure:"db_pass"`
	DbPath      string `mapstructure:"db_path"`
	AutoMigrate bool   `mapstructure:"automigrate"`

	// PublicURL is the API base the scheduler calls back into, e.g. http://host/api/v1.
	PublicURL    string `mapstructure:"public_url"`
	PublicDomain string `mapstructure:"public_domain"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	MediaURL     string `mapstructure:"media_url"`
	MediaRoot    string `mapstructure:"media_root"`

	DefaultAddressType string `mapstructure:"default_address_type"`

	IdentityStore ServiceConfig `mapstructure:"identity_store"`
	MessageSender ServiceConfig `mapstructure:"message_sender"`
	Scheduler     ServiceConfig `mapstructure:"scheduler"`
	Metrics       ServiceConfig `mapstructure:"metrics"`

	AuthTokens []string `mapstructure:"auth_tokens"`

	Workers WorkersConfig `mapstructure:"workers"`

	// MetricsInterval queues the scheduled metrics sweep periodically; 0 disables it.
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
}

// Get loads the configuration from a JSON file (optional when path is empty)
// and STAGEBASED_* environment variables, then fills defaults.
func Get(path string) (Configuration, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("stagebased")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Configuration{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return Configuration{}, errors.Wrap(err, "decode config")
	}
	c.applyDefaults()
	return c, nil
}

// AutomaticEnv only resolves keys viper already knows about.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"api_port", "log_path", "log_level",
		"database", "db_host", "db_port", "db_user", "db_name", "db_pass", "db_path", "automigrate",
		"public_url", "public_domain", "use_ssl", "media_url", "media_root",
		"default_address_type", "auth_tokens", "metrics_interval",
		"workers.count", "workers.queue_size", "workers.retry_max", "workers.retry_base", "workers.eager",
	}
	for _, svc := range []string{"identity_store", "message_sender", "scheduler", "metrics"} {
		keys = append(keys, svc+".url", svc+".token", svc+".timeout", svc+".rate_per_sec")
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// defaults (avoid zero values leaking into clients and workers)
func (c *Configuration) applyDefaults() {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.DbPath == "" {
		c.DbPath = "db/database.db"
	}
	if c.PublicDomain == "" {
		c.PublicDomain = "example.com"
	}
	if c.MediaURL == "" {
		c.MediaURL = "/media/"
	}
	if c.MediaRoot == "" {
		c.MediaRoot = "mediafiles"
	}
	if c.DefaultAddressType == "" {
		c.DefaultAddressType = "msisdn"
	}
	for _, svc := range []*ServiceConfig{&c.IdentityStore, &c.MessageSender, &c.Scheduler, &c.Metrics} {
		if svc.Timeout <= 0 {
			svc.Timeout = 30 * time.Second
		}
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 4
	}
	if c.Workers.QueueSize <= 0 {
		c.Workers.QueueSize = 1024
	}
	if c.Workers.RetryMax < 0 {
		c.Workers.RetryMax = 0
	} else if c.Workers.RetryMax == 0 {
		c.Workers.RetryMax = 3
	}
	if c.Workers.RetryBase <= 0 {
		c.Workers.RetryBase = 500 * time.Millisecond
	}
}
