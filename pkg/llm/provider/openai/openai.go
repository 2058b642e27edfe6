// Package openai parses the Chat Completions event stream. Azure OpenAI and
// the OpenAI-compatible vendors (groq, mistral, openrouter, deepseek, xai,
// togetherai, perplexity, lmstudio, localai) speak the same dialect.
package openai

import (
	"strings"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/wire"
)

// Name is the registry and dialect name.
const Name = "openai"

const doneSentinel = "[DONE]"

// Parser translates one Chat Completions SSE stream into actions.
type Parser struct {
	opts parse.Options

	tools     parse.Tools
	stats     llm.Stats
	modelSent bool
	statsSent bool
	finished  bool
	closed    bool
}

// NewParser creates a Parser with its own parse context.
func NewParser(opts parse.Options) *Parser {
	return &Parser{opts: opts.WithDefaults(Name)}
}

// Parse consumes one data frame. The event name is not used by this
// dialect.
func (p *Parser) Parse(_, data string) ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	if strings.TrimSpace(data) == doneSentinel {
		return p.close(), nil
	}

	var chunk chatChunk
	if err := wire.Decode(p.opts.Vendor, data, &chunk); err != nil {
		return nil, err
	}

	if chunk.Error != nil {
		actions := []llm.Action{parse.VendorIssue(p.opts.Vendor, chunk.Error.Type, chunk.Error.Message)}
		return append(actions, p.close()...), nil
	}

	var actions []llm.Action
	if !p.modelSent && chunk.Model != "" {
		p.modelSent = true
		actions = append(actions, llm.SetModel(chunk.Model))
	}

	for _, choice := range chunk.Choices {
		// Only the first choice is surfaced.
		if choice.Index != 0 {
			continue
		}

		if d := choice.Delta; d != nil {
			if d.Content != nil && *d.Content != "" {
				actions = append(actions, llm.Text{Fragment: *d.Content})
			}
			if d.Refusal != nil && *d.Refusal != "" {
				actions = append(actions, llm.Text{Fragment: *d.Refusal})
			}
			for _, tc := range d.ToolCalls {
				var name, args string
				if tc.Function != nil {
					name, args = tc.Function.Name, tc.Function.Arguments
				}
				p.tools.Append(tc.Index, tc.ID, name, args)
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			p.finished = true
			if reason := *choice.FinishReason; !finishReasons[reason] {
				if err := p.opts.Policy.ResolveUnknown("chunk", "finish_reason", reason); err != nil {
					return actions, err
				}
			}
			for _, call := range p.tools.Flush() {
				actions = append(actions, call)
			}
		}
	}

	var u openaiUsage
	present, err := p.opts.Degradable("chunk", "usage", chunk.Usage, &u)
	if err != nil {
		return actions, err
	}
	if present {
		if u.PromptTokens != nil {
			p.stats.InTokens = llm.Int(*u.PromptTokens)
		}
		if u.CompletionTokens != nil {
			p.stats.OutTokens = llm.Int(*u.CompletionTokens)
		}
		p.statsSent = true
		actions = append(actions, llm.SetStats(parse.Finish(p.stats, p.opts)))
	}

	return actions, nil
}

// End closes gracefully when a finish reason was seen but the server did
// not send [DONE].
func (p *Parser) End() ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	if !p.finished {
		return nil, &parse.TruncatedError{Vendor: p.opts.Vendor}
	}
	return p.close(), nil
}

// close flushes open tool calls, emits the final timing when no usage block
// arrived, and produces the terminal marker.
func (p *Parser) close() []llm.Action {
	p.closed = true

	var actions []llm.Action
	for _, call := range p.tools.Flush() {
		actions = append(actions, call)
	}
	if !p.statsSent {
		actions = append(actions, llm.SetStats(parse.Finish(p.stats, p.opts)))
	}
	return append(actions, llm.ParserClose{})
}
