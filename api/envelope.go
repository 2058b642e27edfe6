package api

import (
	"github.com/papercomputeco/spool/pkg/llm"
)

// Envelope is the JSON form of one llm.Action on the NDJSON dispatch stream,
// discriminated by Type (llm.Action.Kind).
type Envelope struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// issue
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message,omitempty"`

	// set
	Model *string    `json:"model,omitempty"`
	Stats *llm.Stats `json:"stats,omitempty"`

	// tool-call
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// NewEnvelope wraps an action for the wire.
func NewEnvelope(a llm.Action) Envelope {
	env := Envelope{Type: a.Kind()}

	switch a := a.(type) {
	case llm.Text:
		env.Text = a.Fragment
	case llm.Issue:
		env.Symbol = a.Symbol
		env.Message = a.Message
	case llm.Set:
		env.Model = a.Model
		env.Stats = a.Stats
	case llm.ToolCall:
		env.ID = a.ID
		env.Name = a.Name
		env.Arguments = a.Arguments
	}

	return env
}

// Action converts the envelope back into an llm.Action. Unknown types yield
// false.
func (e Envelope) Action() (llm.Action, bool) {
	switch e.Type {
	case llm.KindText:
		return llm.Text{Fragment: e.Text}, true
	case llm.KindIssue:
		return llm.Issue{Symbol: e.Symbol, Message: e.Message}, true
	case llm.KindSet:
		return llm.Set{Model: e.Model, Stats: e.Stats}, true
	case llm.KindToolCall:
		return llm.ToolCall{ID: e.ID, Name: e.Name, Arguments: e.Arguments}, true
	case llm.KindParserClose:
		return llm.ParserClose{}, true
	default:
		return nil, false
	}
}
