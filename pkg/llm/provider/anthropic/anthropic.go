// Package anthropic parses the Anthropic Messages API event stream. The same
// dialect is spoken by Claude on Vertex AI.
package anthropic

import (
	"bytes"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/wire"
)

// Name is the registry and dialect name.
const Name = "anthropic"

// Parser translates one Anthropic SSE stream into actions.
type Parser struct {
	opts parse.Options

	tools   parse.Tools
	stats   llm.Stats
	stopped bool
	closed  bool
}

// NewParser creates a Parser with its own parse context.
func NewParser(opts parse.Options) *Parser {
	return &Parser{opts: opts.WithDefaults(Name)}
}

// Parse consumes one SSE event. Events without a name fall back to the
// "type" field of their payload.
func (p *Parser) Parse(name, data string) ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	if name == "" {
		name = wire.Peek(data, "type")
	}

	switch name {
	case "ping":
		return nil, nil
	case "message_start":
		return p.messageStart(data)
	case "content_block_start":
		return p.blockStart(data)
	case "content_block_delta":
		return p.blockDelta(data)
	case "content_block_stop":
		return p.blockStop(data)
	case "message_delta":
		return p.messageDelta(data)
	case "message_stop":
		return p.close(), nil
	case "error":
		return p.vendorError(data)
	default:
		return nil, p.opts.Policy.ResolveUnknown(p.opts.Vendor, "event", name)
	}
}

// End is called when the body ends without message_stop.
func (p *Parser) End() ([]llm.Action, error) {
	if p.closed {
		return nil, nil
	}
	if !p.stopped {
		return nil, &parse.TruncatedError{Vendor: p.opts.Vendor}
	}
	return p.close(), nil
}

func (p *Parser) messageStart(data string) ([]llm.Action, error) {
	var ev messageStartEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	var set llm.Set
	if ev.Message.Model != "" {
		set = llm.SetModel(ev.Message.Model)
	}
	var u anthropicUsage
	present, err := p.opts.Degradable("message_start", "message.usage", ev.Message.Usage, &u)
	if err != nil {
		return nil, err
	}
	if present {
		if in, ok := inputTokens(&u); ok {
			p.stats.InTokens = llm.Int(in)
			set = set.Merge(llm.SetStats(llm.Stats{InTokens: llm.Int(in)}))
		}
	}

	if set.Model == nil && set.Stats == nil {
		return nil, nil
	}
	return []llm.Action{set}, nil
}

func (p *Parser) blockStart(data string) ([]llm.Action, error) {
	var ev contentBlockStartEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	block := ev.ContentBlock
	switch {
	case block.Type == "text":
		if block.Text == "" {
			return nil, nil
		}
		return []llm.Action{llm.Text{Fragment: block.Text}}, nil
	case block.Type == "tool_use":
		p.tools.Open(ev.Index, block.ID, block.Name)
		if input := bytes.TrimSpace(block.Input); len(input) > 0 && !bytes.Equal(input, []byte("{}")) {
			p.tools.Append(ev.Index, "", "", string(input))
		}
		return nil, nil
	case bookkeepingBlocks[block.Type]:
		return nil, nil
	default:
		return nil, p.opts.Policy.ResolveUnknown("content_block_start", "content_block.type", block.Type)
	}
}

func (p *Parser) blockDelta(data string) ([]llm.Action, error) {
	var ev contentBlockDeltaEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	delta := ev.Delta
	switch {
	case delta.Type == "text_delta":
		if delta.Text == "" {
			return nil, nil
		}
		return []llm.Action{llm.Text{Fragment: delta.Text}}, nil
	case delta.Type == "input_json_delta":
		if p.tools.Has(ev.Index) {
			p.tools.Append(ev.Index, "", "", delta.PartialJSON)
		}
		return nil, nil
	case bookkeepingDeltas[delta.Type]:
		return nil, nil
	default:
		return nil, p.opts.Policy.ResolveUnknown("content_block_delta", "delta.type", delta.Type)
	}
}

func (p *Parser) blockStop(data string) ([]llm.Action, error) {
	var ev contentBlockStopEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	if call, ok := p.tools.Close(ev.Index); ok {
		return []llm.Action{call}, nil
	}
	return nil, nil
}

func (p *Parser) messageDelta(data string) ([]llm.Action, error) {
	var ev messageDeltaEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	if ev.Delta != nil && ev.Delta.StopReason != nil {
		p.stopped = true
		if reason := *ev.Delta.StopReason; !stopReasons[reason] {
			if err := p.opts.Policy.ResolveUnknown("message_delta", "stop_reason", reason); err != nil {
				return nil, err
			}
		}
	}

	var u anthropicUsage
	present, err := p.opts.Degradable("message_delta", "usage", ev.Usage, &u)
	if err != nil || !present {
		return nil, err
	}
	if u.OutputTokens != nil {
		p.stats.OutTokens = llm.Int(*u.OutputTokens)
	}
	if in, ok := inputTokens(&u); ok {
		p.stats.InTokens = llm.Int(in)
	}

	return []llm.Action{llm.SetStats(parse.Finish(p.stats, p.opts))}, nil
}

func (p *Parser) vendorError(data string) ([]llm.Action, error) {
	var ev errorEvent
	if err := wire.Decode(p.opts.Vendor, data, &ev); err != nil {
		return nil, err
	}

	actions := []llm.Action{parse.VendorIssue(p.opts.Vendor, ev.Error.Type, ev.Error.Message)}
	return append(actions, p.close()...), nil
}

// close flushes tool calls left open and produces the terminal marker.
func (p *Parser) close() []llm.Action {
	p.closed = true

	var actions []llm.Action
	for _, call := range p.tools.Flush() {
		actions = append(actions, call)
	}
	return append(actions, llm.ParserClose{})
}

// inputTokens sums the direct and cached input token counts.
func inputTokens(u *anthropicUsage) (int, bool) {
	if u.InputTokens == nil && u.CacheCreationInputTokens == nil && u.CacheReadInputTokens == nil {
		return 0, false
	}

	total := 0
	for _, n := range []*int{u.InputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens} {
		if n != nil {
			total += *n
		}
	}
	return total, true
}
