// Package parse holds the scaffolding shared by the per-vendor stream
// parsers: parser options, the truncation error, tool-call buffers and the
// final stats computation.
package parse

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/wire"
)

// Options configures one parser instance.
type Options struct {
	// Vendor is the registry name reported in issues and errors. Empty
	// means the dialect's own name.
	Vendor string

	// Policy decides what happens with unknown wire values. Nil means a
	// lenient policy that discards warnings.
	Policy *resilience.Policy

	// Start is when the dispatch began. Zero means when the parser was
	// created.
	Start time.Time

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// WithDefaults returns o with every unset field filled in, using vendor as
// the fallback vendor name.
func (o Options) WithDefaults(vendor string) Options {
	if o.Vendor == "" {
		o.Vendor = vendor
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Start.IsZero() {
		o.Start = o.Now()
	}
	if o.Policy == nil {
		o.Policy = resilience.New(resilience.Config{}, nil)
	}
	return o
}

// Elapsed returns the seconds since Start.
func (o Options) Elapsed() float64 {
	return o.Now().Sub(o.Start).Seconds()
}

// Degradable decodes an optional sub-document whose loss does not corrupt
// the generation, such as a usage block. A schema violation inside raw goes
// through the policy: strict mode returns the violation, lenient mode logs
// it and reports the block as absent so the parser carries on without it.
// context names the vendor event the block arrived in.
func (o Options) Degradable(context, field string, raw json.RawMessage, v any) (bool, error) {
	ok, err := wire.DecodeField(o.Vendor, field, raw, v)
	if err == nil {
		return ok, nil
	}

	var violation *wire.SchemaViolationError
	if !errors.As(err, &violation) {
		return false, err
	}
	if o.Policy.ResolveUnknown(context, violation.Path, string(raw)) != nil {
		return false, err
	}
	return false, nil
}

// Finish completes the final stats block of a generation: it stamps
// TimeOuter, marks missing input tokens as llm.UnknownTokens and, when the
// vendor did not report a rate, derives OutRate from the output tokens over
// the outer time.
func Finish(stats llm.Stats, o Options) llm.Stats {
	if stats.InTokens == nil {
		stats.InTokens = llm.Int(llm.UnknownTokens)
	}

	outer := o.Elapsed()
	stats.TimeOuter = &outer

	if stats.OutRate == nil && stats.OutTokens != nil && outer > 0 {
		rate := float64(*stats.OutTokens) / outer
		stats.OutRate = &rate
	}
	return stats
}

// VendorIssue builds the Issue reported when a vendor sends an in-band error.
func VendorIssue(vendor, kind, message string) llm.Issue {
	if kind == "" {
		kind = "error"
	}
	return llm.Issue{
		Symbol:  SymbolVendorError,
		Message: vendor + " " + kind + ": " + message,
	}
}
