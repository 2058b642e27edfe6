package config

import "github.com/papercomputeco/spool/pkg/resilience"

const (
	defaultEnvironment    = resilience.EnvProduction
	defaultIdleTimeout    = "60s"
	defaultRequestTimeout = "5m"
	defaultQueueSize      = 8

	defaultServerListen = ":8080"

	defaultKafkaTopic = "spool.tapes"

	defaultVendor = "ollama"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Dispatch: DispatchConfig{
			Environment:    defaultEnvironment,
			IdleTimeout:    defaultIdleTimeout,
			RequestTimeout: defaultRequestTimeout,
			QueueSize:      defaultQueueSize,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Vendor: VendorConfig{
			Default: defaultVendor,
		},
	}
}
