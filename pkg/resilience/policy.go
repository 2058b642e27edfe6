// Package resilience decides what happens when a vendor sends a value the
// parsers do not recognise: fail the stream (strict) or log a warning and
// carry on with a neutral default (lenient).
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/spool/pkg/logger"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

const (
	// StrictValueLimit bounds the offending value embedded in an
	// UnknownWireValueError.
	StrictValueLimit = 1024

	// LenientValueLimit bounds the offending value written to the warning log.
	LenientValueLimit = 4094
)

// Config is resolved once at startup from configuration and environment.
type Config struct {
	// StrictParsing forces strict mode regardless of Environment.
	StrictParsing bool

	// Environment is one of EnvDevelopment, EnvTest or EnvProduction.
	// Empty means EnvProduction.
	Environment string
}

// Policy is the process-wide strict/lenient decision. It is read-only after
// New and safe for concurrent use.
type Policy struct {
	env         string
	strict      bool
	diagnostics bool
	logger      *slog.Logger
}

// New creates a Policy. Strict mode is on when cfg.StrictParsing is set or
// the environment is development. A nil logger discards warnings.
func New(cfg Config, log *slog.Logger) *Policy {
	if log == nil {
		log = logger.Nop()
	}

	env := NormalizeEnvironment(cfg.Environment)
	return &Policy{
		env:         env,
		strict:      cfg.StrictParsing || env == EnvDevelopment,
		diagnostics: env == EnvDevelopment,
		logger:      log,
	}
}

// Strict reports whether unknown wire values are fatal.
func (p *Policy) Strict() bool {
	return p.strict
}

// Diagnostics reports whether upstream URLs and payload excerpts may be
// embedded in issue messages.
func (p *Policy) Diagnostics() bool {
	return p.diagnostics
}

// Environment returns the normalized environment name.
func (p *Policy) Environment() string {
	return p.env
}

// ResolveUnknown is called by a parser that met an unrecognised value for
// field while handling context (usually the vendor event name). In strict
// mode it returns an *UnknownWireValueError that the parser must propagate.
// In lenient mode it logs a warning and returns nil, and the parser
// substitutes a neutral default.
func (p *Policy) ResolveUnknown(context, field string, value any) error {
	if p.strict {
		return &UnknownWireValueError{
			Context: context,
			Field:   field,
			Value:   BoundedCopy(value, StrictValueLimit),
		}
	}

	p.logger.Warn("unknown wire value",
		"context", context,
		"field", field,
		"value", BoundedCopy(value, LenientValueLimit),
	)
	return nil
}

// Describe returns the consumer-facing message for err. Outside
// development it is err.Error() unchanged; with diagnostics on, the
// offending value of an UnknownWireValueError is appended.
func (p *Policy) Describe(err error) string {
	msg := err.Error()
	if p == nil || !p.diagnostics {
		return msg
	}

	var uw *UnknownWireValueError
	if errors.As(err, &uw) {
		msg += fmt.Sprintf(": %v", uw.Value)
	}
	return msg
}

// NormalizeEnvironment lowercases env and maps empty or unrecognised values
// to EnvProduction.
func NormalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if ValidEnvironment(env) {
		return env
	}
	return EnvProduction
}

// ValidEnvironment reports whether env names a known environment.
func ValidEnvironment(env string) bool {
	switch env {
	case EnvDevelopment, EnvTest, EnvProduction:
		return true
	default:
		return false
	}
}
