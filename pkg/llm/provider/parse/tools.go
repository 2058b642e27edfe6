package parse

import (
	"sort"
	"strings"

	"github.com/papercomputeco/spool/pkg/llm"
)

// Tools buffers tool calls whose arguments arrive in fragments, keyed by the
// vendor's content or call index.
type Tools struct {
	calls map[int]*pendingTool
}

type pendingTool struct {
	id   string
	name string
	args strings.Builder
}

// Open starts a buffer at index, replacing any open one.
func (t *Tools) Open(index int, id, name string) {
	if t.calls == nil {
		t.calls = make(map[int]*pendingTool)
	}
	t.calls[index] = &pendingTool{id: id, name: name}
}

// Append adds an argument fragment at index, opening the buffer if needed.
// Non-empty id and name values fill in fields the opening fragment lacked.
func (t *Tools) Append(index int, id, name, fragment string) {
	pt, ok := t.calls[index]
	if !ok {
		t.Open(index, id, name)
		pt = t.calls[index]
	}
	if pt.id == "" {
		pt.id = id
	}
	if pt.name == "" {
		pt.name = name
	}
	pt.args.WriteString(fragment)
}

// Has reports whether a buffer is open at index.
func (t *Tools) Has(index int) bool {
	_, ok := t.calls[index]
	return ok
}

// Close completes the buffer at index.
func (t *Tools) Close(index int) (llm.ToolCall, bool) {
	pt, ok := t.calls[index]
	if !ok {
		return llm.ToolCall{}, false
	}
	delete(t.calls, index)
	return pt.toolCall(), true
}

// Flush completes every open buffer in index order.
func (t *Tools) Flush() []llm.ToolCall {
	if len(t.calls) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(t.calls))
	for i := range t.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, t.calls[i].toolCall())
	}
	t.calls = nil
	return out
}

func (pt *pendingTool) toolCall() llm.ToolCall {
	args := pt.args.String()
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return llm.ToolCall{ID: pt.id, Name: pt.name, Arguments: args}
}
