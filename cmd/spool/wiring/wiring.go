// Package wiring turns resolved CLI configuration into the dispatcher,
// parsing policy and tape recorder shared by spool commands.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/sqlitepath"
	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/eventstream/kafka"
	"github.com/papercomputeco/spool/pkg/eventstream/nop"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/tape/inmemory"
	"github.com/papercomputeco/spool/pkg/tape/postgres"
	"github.com/papercomputeco/spool/pkg/tape/sqlite"
)

// Settings is the subset of configuration the dispatch layer needs.
type Settings struct {
	Environment    string
	StrictParsing  bool
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	QueueSize      int
	SQLitePath     string
	PostgresDSN    string
	KafkaBrokers   []string
	KafkaTopic     string
}

// FromViper reads Settings from v after flags, env and config.toml were merged.
func FromViper(v *viper.Viper) (Settings, error) {
	s := Settings{
		Environment:   v.GetString("dispatch.environment"),
		StrictParsing: v.GetBool("dispatch.strict_parsing"),
		QueueSize:     v.GetInt("dispatch.queue_size"),
		SQLitePath:    v.GetString("storage.sqlite_path"),
		PostgresDSN:   v.GetString("storage.postgres_dsn"),
		KafkaBrokers:  brokers(v.GetString("eventstream.kafka_brokers")),
		KafkaTopic:    v.GetString("eventstream.kafka_topic"),
	}

	if env := s.Environment; env != "" && !resilience.ValidEnvironment(env) {
		return Settings{}, fmt.Errorf("invalid environment %q (expected development, test or production)", env)
	}

	var err error
	if s.IdleTimeout, err = duration(v, "dispatch.idle_timeout"); err != nil {
		return Settings{}, err
	}
	if s.RequestTimeout, err = duration(v, "dispatch.request_timeout"); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Policy builds the process-wide parsing policy.
func (s Settings) Policy(log *slog.Logger) *resilience.Policy {
	return resilience.New(resilience.Config{
		StrictParsing: s.StrictParsing,
		Environment:   s.Environment,
	}, log)
}

// DispatchConfig builds the dispatcher configuration. rec may be nil.
func (s Settings) DispatchConfig(rec tape.Recorder) dispatch.Config {
	return dispatch.Config{
		QueueSize:      s.QueueSize,
		IdleTimeout:    s.IdleTimeout,
		RequestTimeout: s.RequestTimeout,
		Recorder:       rec,
	}
}

// OpenRecorder opens the tape store: PostgreSQL when a DSN is set, then
// SQLite when a path is set, otherwise memory.
func (s Settings) OpenRecorder(ctx context.Context, log *slog.Logger) (tape.Recorder, error) {
	switch {
	case s.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, s.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL recorder: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case s.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, s.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite recorder: %w", err)
		}
		log.Info("using SQLite storage", "path", s.SQLitePath)
		return driver, nil

	default:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// OpenPublisher returns the tape event publisher: Kafka when brokers are
// configured, otherwise a no-op.
func (s Settings) OpenPublisher(log *slog.Logger) (eventstream.Publisher, error) {
	if len(s.KafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: s.KafkaBrokers,
		Topic:   s.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	log.Info("publishing tape events to Kafka", "brokers", s.KafkaBrokers, "topic", s.KafkaTopic)
	return pub, nil
}

// OpenStore opens an existing tape store for reading: PostgreSQL when a DSN
// is configured, otherwise the SQLite database at the configured path, the
// .spool/ default, or wherever sqlitepath finds one.
func (s Settings) OpenStore(ctx context.Context, configDir string, log *slog.Logger) (tape.Recorder, error) {
	if s.PostgresDSN == "" {
		resolved, err := s.StorePath(configDir)
		if err != nil {
			return nil, err
		}
		s.SQLitePath = resolved
	}
	return s.OpenRecorder(ctx, log)
}

// StorePath returns the SQLite database OpenStore reads when no PostgreSQL
// DSN is configured.
func (s Settings) StorePath(configDir string) (string, error) {
	path := s.SQLitePath
	if path == "" {
		if def, err := sqlitepath.DefaultPath(configDir); err == nil && exists(def) {
			path = def
		}
	}
	return sqlitepath.ResolveSQLitePath(path)
}

func brokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// duration parses a Go duration string. Empty and "0" select the
// dispatcher default; a negative value disables the limit.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
