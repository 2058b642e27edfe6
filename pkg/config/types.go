package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/papercomputeco/spool/pkg/resilience"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Dispatch    DispatchConfig    `toml:"dispatch"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Vendor      VendorConfig      `toml:"vendor"`
}

// DispatchConfig holds the dispatcher and parsing policy settings.
type DispatchConfig struct {
	// Environment is development, test or production. Development turns on
	// strict parsing and diagnostic excerpts.
	Environment string `toml:"environment,omitempty"`

	// StrictParsing makes unknown wire values fatal in every environment.
	StrictParsing bool `toml:"strict_parsing,omitempty"`

	// IdleTimeout and RequestTimeout are Go duration strings, e.g. "60s".
	IdleTimeout    string `toml:"idle_timeout,omitempty"`
	RequestTimeout string `toml:"request_timeout,omitempty"`

	QueueSize uint `toml:"queue_size,omitempty"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds tape storage settings. An empty config records to
// memory only.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig holds the tape event publisher settings. Events are only
// published when at least one broker is set.
type EventStreamConfig struct {
	// KafkaBrokers is a comma-separated list of host:port addresses.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// VendorConfig holds the defaults used by "spool generate".
type VendorConfig struct {
	Default  string `toml:"default,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"dispatch.environment": {
		get: func(c *Config) string { return c.Dispatch.Environment },
		set: func(c *Config, v string) error {
			if !resilience.ValidEnvironment(v) {
				return fmt.Errorf("invalid value for dispatch.environment: %q (expected development, test or production)", v)
			}
			c.Dispatch.Environment = v
			return nil
		},
	},
	"dispatch.strict_parsing": {
		get: func(c *Config) string { return strconv.FormatBool(c.Dispatch.StrictParsing) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for dispatch.strict_parsing: %w", err)
			}
			c.Dispatch.StrictParsing = b
			return nil
		},
	},
	"dispatch.idle_timeout": {
		get: func(c *Config) string { return c.Dispatch.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for dispatch.idle_timeout: %w", err)
			}
			c.Dispatch.IdleTimeout = v
			return nil
		},
	},
	"dispatch.request_timeout": {
		get: func(c *Config) string { return c.Dispatch.RequestTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for dispatch.request_timeout: %w", err)
			}
			c.Dispatch.RequestTimeout = v
			return nil
		},
	},
	"dispatch.queue_size": {
		get: func(c *Config) string {
			if c.Dispatch.QueueSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Dispatch.QueueSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for dispatch.queue_size: %w", err)
			}
			c.Dispatch.QueueSize = uint(n)
			return nil
		},
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.kafka_brokers": {
		get: func(c *Config) string { return c.EventStream.KafkaBrokers },
		set: func(c *Config, v string) error { c.EventStream.KafkaBrokers = v; return nil },
	},
	"eventstream.kafka_topic": {
		get: func(c *Config) string { return c.EventStream.KafkaTopic },
		set: func(c *Config, v string) error { c.EventStream.KafkaTopic = v; return nil },
	},
	"vendor.default": {
		get: func(c *Config) string { return c.Vendor.Default },
		set: func(c *Config, v string) error { c.Vendor.Default = v; return nil },
	},
	"vendor.endpoint": {
		get: func(c *Config) string { return c.Vendor.Endpoint },
		set: func(c *Config, v string) error { c.Vendor.Endpoint = v; return nil },
	},
}
