package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --vendor
// on both "spool generate" and "spool serve").
type Flag struct {
	// Name is the long flag name (e.g. "vendor").
	Name string

	// Shorthand is the one-letter short flag (e.g. "v"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "vendor.default").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagVendor         = "vendor"
	FlagEndpoint       = "endpoint"
	FlagEnvironment    = "environment"
	FlagStrict         = "strict"
	FlagIdleTimeout    = "idle-timeout"
	FlagRequestTimeout = "request-timeout"
	FlagQueueSize      = "queue-size"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagKafkaTopic     = "kafka-topic"
)

// Registry is the FlagSet shared by every spool command.
var Registry = FlagSet{
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the API server to listen on"},
	FlagVendor:         {Name: "vendor", ViperKey: "vendor.default", Description: "Vendor to dispatch to (see 'spool vendors')"},
	FlagEndpoint:       {Name: "endpoint", Shorthand: "e", ViperKey: "vendor.endpoint", Description: "Override the vendor's base URL"},
	FlagEnvironment:    {Name: "environment", ViperKey: "dispatch.environment", Description: "Parsing environment: development, test or production"},
	FlagStrict:         {Name: "strict", ViperKey: "dispatch.strict_parsing", Description: "Treat unknown wire values as fatal"},
	FlagIdleTimeout:    {Name: "idle-timeout", ViperKey: "dispatch.idle_timeout", Description: "Cancel a dispatch after this long without upstream data"},
	FlagRequestTimeout: {Name: "request-timeout", ViperKey: "dispatch.request_timeout", Description: "Upper bound on one whole dispatch"},
	FlagQueueSize:      {Name: "queue-size", ViperKey: "dispatch.queue_size", Description: "Actions buffered per dispatch before the upstream read pauses"},
	FlagSQLite:         {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database for tapes (e.g., ./spool.db, in-memory)"},
	FlagPostgres:       {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for tapes"},
	FlagKafkaBrokers:   {Name: "kafka-brokers", ViperKey: "eventstream.kafka_brokers", Description: "Comma-separated Kafka brokers for tape events (disabled when empty)"},
	FlagKafkaTopic:     {Name: "kafka-topic", ViperKey: "eventstream.kafka_topic", Description: "Kafka topic for tape events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
