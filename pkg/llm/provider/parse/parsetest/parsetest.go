// Package parsetest drives vendor parsers with recorded event sequences in
// tests.
package parsetest

import (
	"time"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/resilience"
)

// Event is one recorded wire event.
type Event struct {
	Name string
	Data string
}

// Parser is the contract every vendor parser satisfies.
type Parser interface {
	Parse(name, data string) ([]llm.Action, error)
	End() ([]llm.Action, error)
}

// Run feeds events to p in order and then calls End. It stops at the first
// error and returns the actions produced up to that point.
func Run(p Parser, events ...Event) ([]llm.Action, error) {
	var out []llm.Action
	for _, ev := range events {
		actions, err := p.Parse(ev.Name, ev.Data)
		out = append(out, actions...)
		if err != nil {
			return out, err
		}
	}

	actions, err := p.End()
	return append(out, actions...), err
}

// Data builds unnamed events, as used by data-only SSE and NDJSON dialects.
func Data(lines ...string) []Event {
	events := make([]Event, len(lines))
	for i, l := range lines {
		events[i] = Event{Data: l}
	}
	return events
}

// Kinds returns the Kind of every action.
func Kinds(actions []llm.Action) []string {
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	return kinds
}

// Texts concatenates every Text fragment.
func Texts(actions []llm.Action) string {
	var s string
	for _, a := range actions {
		if t, ok := a.(llm.Text); ok {
			s += t.Fragment
		}
	}
	return s
}

// Metadata folds every Set in actions.
func Metadata(actions []llm.Action) llm.Metadata {
	var m llm.Metadata
	for _, a := range actions {
		if s, ok := a.(llm.Set); ok {
			m.Apply(s)
		}
	}
	return m
}

// Options returns parser options with a fixed two second clock and the
// given policy.
func Options(policy *resilience.Policy) parse.Options {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return parse.Options{
		Policy: policy,
		Start:  start,
		Now:    func() time.Time { return start.Add(2 * time.Second) },
	}
}

// Strict returns a strict policy.
func Strict() *resilience.Policy {
	return resilience.New(resilience.Config{StrictParsing: true}, nil)
}

// Lenient returns a lenient policy that discards warnings.
func Lenient() *resilience.Policy {
	return resilience.New(resilience.Config{Environment: resilience.EnvProduction}, nil)
}
