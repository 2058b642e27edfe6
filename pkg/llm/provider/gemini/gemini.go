// Package gemini parses the Gemini API streamGenerateContent event stream.
package gemini

import (
	"bytes"
	"strconv"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/wire"
)

// Name is the registry and dialect name.
const Name = "gemini"

// Parser translates one Gemini SSE stream into actions.
type Parser struct {
	opts parse.Options

	stats     llm.Stats
	modelSent bool
	toolCalls int
	closed    bool
}

// NewParser creates a Parser with its own parse context.
func NewParser(opts parse.Options) *Parser {
	return &Parser{opts: opts.WithDefaults(Name)}
}

// Parse consumes one data frame.
func (p *Parser) Parse(_, data string) ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}

	var resp generateResponse
	if err := wire.Decode(p.opts.Vendor, data, &resp); err != nil {
		return nil, err
	}

	if e := resp.Error; e != nil {
		p.closed = true
		return []llm.Action{parse.VendorIssue(p.opts.Vendor, e.Status, e.Message), llm.ParserClose{}}, nil
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		p.closed = true
		return []llm.Action{
			llm.Issue{Symbol: parse.SymbolBlocked, Message: p.opts.Vendor + " blocked the prompt: " + fb.BlockReason},
			llm.ParserClose{},
		}, nil
	}

	var actions []llm.Action
	if !p.modelSent && resp.ModelVersion != "" {
		p.modelSent = true
		actions = append(actions, llm.SetModel(resp.ModelVersion))
	}

	var u usageMetadata
	present, err := p.opts.Degradable("chunk", "usageMetadata", resp.UsageMetadata, &u)
	if err != nil {
		return actions, err
	}
	if present {
		p.absorbUsage(&u)
	}

	finish := ""
	for _, c := range resp.Candidates {
		// Only the first candidate is surfaced.
		if c.Index != 0 {
			continue
		}
		if c.Content != nil {
			actions = append(actions, p.parts(c.Content.Parts)...)
		}
		finish = c.FinishReason
	}

	if finish == "" {
		return actions, nil
	}
	if !finishReasons[finish] {
		if err := p.opts.Policy.ResolveUnknown("candidate", "finishReason", finish); err != nil {
			return actions, err
		}
	}

	p.closed = true
	actions = append(actions, llm.SetStats(parse.Finish(p.stats, p.opts)))
	return append(actions, llm.ParserClose{}), nil
}

// End is only reached when no candidate carried a finish reason.
func (p *Parser) End() ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	return nil, &parse.TruncatedError{Vendor: p.opts.Vendor}
}

func (p *Parser) parts(parts []geminiPart) []llm.Action {
	var actions []llm.Action
	for _, part := range parts {
		switch {
		case part.Thought:
		case part.FunctionCall != nil:
			fc := part.FunctionCall
			args := string(bytes.TrimSpace(fc.Args))
			if args == "" || args == "null" {
				args = "{}"
			}
			id := fc.ID
			if id == "" {
				id = "call_" + strconv.Itoa(p.toolCalls)
			}
			p.toolCalls++
			actions = append(actions, llm.ToolCall{ID: id, Name: fc.Name, Arguments: args})
		case part.Text != "":
			actions = append(actions, llm.Text{Fragment: part.Text})
		}
	}
	return actions
}

// absorbUsage keeps the latest counters. Gemini repeats cumulative usage on
// every chunk, so only the final values are emitted.
func (p *Parser) absorbUsage(u *usageMetadata) {
	if u.PromptTokenCount != nil {
		p.stats.InTokens = llm.Int(*u.PromptTokenCount)
	}
	if u.CandidatesTokenCount != nil || u.ThoughtsTokenCount != nil {
		out := 0
		if u.CandidatesTokenCount != nil {
			out += *u.CandidatesTokenCount
		}
		if u.ThoughtsTokenCount != nil {
			out += *u.ThoughtsTokenCount
		}
		p.stats.OutTokens = llm.Int(out)
	}
}
