// Package llm holds the vendor-agnostic types shared by the spool dispatch
// layer: the Action sequence a dispatch produces, the access descriptor and
// generation request a caller hands in, and the cumulative generation
// Metadata built from Set actions.
package llm

// Action is one unit of normalized output from a vendor parser.
//
// Action is a sealed interface: the unexported marker method keeps the set
// of variants closed to this package. Consumers switch on the concrete type:
//
//	switch a := action.(type) {
//	case llm.Text:
//	case llm.Issue:
//	case llm.Set:
//	case llm.ToolCall:
//	case llm.ParserClose:
//	}
type Action interface {
	action()

	// Kind returns the stable, lowercase name of the variant.
	Kind() string
}

// Action kinds, as returned by Action.Kind and used on the wire by the API.
const (
	KindText        = "text"
	KindIssue       = "issue"
	KindSet         = "set"
	KindToolCall    = "tool-call"
	KindParserClose = "parser-close"
)

// Text is an incremental piece of assistant output.
type Text struct {
	Fragment string `json:"text"`
}

// Issue is an anomaly surfaced to the caller. Symbol is a short,
// machine-stable code; Message is human readable.
type Issue struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// Set is a partial update to the generation metadata. Nil fields are absent
// and leave the corresponding metadata untouched.
type Set struct {
	Model *string `json:"model,omitempty"`
	Stats *Stats  `json:"stats,omitempty"`
}

// ToolCall is a complete tool invocation requested by the model. Arguments
// is the raw JSON text of the invocation arguments.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParserClose is the terminal marker: no further actions follow it.
type ParserClose struct{}

func (Text) action()        {}
func (Issue) action()       {}
func (Set) action()         {}
func (ToolCall) action()    {}
func (ParserClose) action() {}

func (Text) Kind() string        { return KindText }
func (Issue) Kind() string       { return KindIssue }
func (Set) Kind() string         { return KindSet }
func (ToolCall) Kind() string    { return KindToolCall }
func (ParserClose) Kind() string { return KindParserClose }

// Interface compliance checks.
var (
	_ Action = Text{}
	_ Action = Issue{}
	_ Action = Set{}
	_ Action = ToolCall{}
	_ Action = ParserClose{}
)

// IsClose reports whether a is the terminal ParserClose marker.
func IsClose(a Action) bool {
	_, ok := a.(ParserClose)
	return ok
}

// SetModel returns a Set carrying only a model identifier.
func SetModel(model string) Set {
	return Set{Model: &model}
}

// SetStats returns a Set carrying only a stats block.
func SetStats(stats Stats) Set {
	return Set{Stats: &stats}
}

// Merge folds next into s and returns the combined update. Fields present
// in next win over the same fields in s; fields absent from next are kept.
// Applying the merged update is equivalent to applying s then next.
func (s Set) Merge(next Set) Set {
	out := Set{Model: s.Model}
	if next.Model != nil {
		out.Model = next.Model
	}

	switch {
	case s.Stats == nil && next.Stats == nil:
	case s.Stats == nil:
		st := *next.Stats
		out.Stats = &st
	default:
		st := s.Stats.merge(next.Stats)
		out.Stats = &st
	}

	return out
}
