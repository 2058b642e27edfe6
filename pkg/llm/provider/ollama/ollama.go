// Package ollama parses the newline-delimited JSON stream of Ollama's
// /api/chat endpoint.
package ollama

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/wire"
)

// Name is the registry and dialect name.
const Name = "ollama"

// Parser translates one Ollama NDJSON stream into actions.
type Parser struct {
	opts parse.Options

	modelSent bool
	toolCalls int
	closed    bool
}

// NewParser creates a Parser with its own parse context.
func NewParser(opts parse.Options) *Parser {
	return &Parser{opts: opts.WithDefaults(Name)}
}

// Parse consumes one NDJSON line.
func (p *Parser) Parse(_, data string) ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}

	var chunk chatChunk
	if err := wire.Decode(p.opts.Vendor, data, &chunk); err != nil {
		return nil, err
	}

	if chunk.Error != nil {
		p.closed = true
		return []llm.Action{parse.VendorIssue(p.opts.Vendor, "error", *chunk.Error), llm.ParserClose{}}, nil
	}

	var actions []llm.Action
	if !p.modelSent && chunk.Model != "" {
		p.modelSent = true
		actions = append(actions, llm.SetModel(chunk.Model))
	}

	if msg := chunk.Message; msg != nil {
		if msg.Content != "" {
			actions = append(actions, llm.Text{Fragment: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			args := string(bytes.TrimSpace(tc.Function.Arguments))
			if args == "" || args == "null" {
				args = "{}"
			}
			// Ollama does not always assign call ids.
			id := tc.ID
			if id == "" {
				id = "call_" + strconv.Itoa(p.toolCalls)
			}
			p.toolCalls++
			actions = append(actions, llm.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
		}
	}

	if !chunk.Done {
		return actions, nil
	}

	if chunk.DoneReason != nil && !doneReasons[*chunk.DoneReason] {
		if err := p.opts.Policy.ResolveUnknown("chunk", "done_reason", *chunk.DoneReason); err != nil {
			return actions, err
		}
	}

	var counters doneCounters
	if _, err := p.opts.Degradable("chunk", "", json.RawMessage(data), &counters); err != nil {
		return actions, err
	}

	p.closed = true
	actions = append(actions, llm.SetStats(parse.Finish(finalStats(counters), p.opts)))
	return append(actions, llm.ParserClose{}), nil
}

// End is only reached when the stream ended without a done line.
func (p *Parser) End() ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	return nil, &parse.TruncatedError{Vendor: p.opts.Vendor}
}

// finalStats converts Ollama's counters. Durations are reported in
// nanoseconds.
func finalStats(c doneCounters) llm.Stats {
	var stats llm.Stats
	if c.PromptEvalCount != nil {
		stats.InTokens = llm.Int(*c.PromptEvalCount)
	}
	if c.EvalCount != nil {
		stats.OutTokens = llm.Int(*c.EvalCount)
	}
	if c.EvalDuration != nil && *c.EvalDuration > 0 {
		inner := time.Duration(*c.EvalDuration).Seconds()
		stats.TimeInner = &inner
		if c.EvalCount != nil {
			rate := float64(*c.EvalCount) / inner
			stats.OutRate = &rate
		}
	}
	return stats
}
