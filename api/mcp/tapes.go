package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/tape"
)

var (
	listToolName    = "list_tapes"
	listDescription = "List the most recently recorded LLM dispatches (tapes), newest first, with vendor, model, outcome and token counts."

	getToolName    = "get_tape"
	getDescription = "Get one recorded dispatch by id, optionally including its raw upstream frames."

	replayToolName    = "replay_tape"
	replayDescription = "Replay a recorded dispatch through its vendor parser and return the generated text, tool calls and any issues."
)

const defaultListLimit = 10

// ListTapesInput represents the input arguments for the list_tapes tool.
type ListTapesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of tapes to return (default: 10)"`
}

// TapeSummary describes one tape without its frames.
type TapeSummary struct {
	ID         string     `json:"id"`
	Vendor     string     `json:"vendor"`
	Model      string     `json:"model,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	DurationMs int64      `json:"duration_ms"`
	Outcome    string     `json:"outcome"`
	Frames     int        `json:"frames"`
	Stats      *llm.Stats `json:"stats,omitempty"`
}

// ListTapesOutput represents the output of the list_tapes tool.
type ListTapesOutput struct {
	Tapes []TapeSummary `json:"tapes"`
	Count int           `json:"count"`
}

// GetTapeInput represents the input arguments for the get_tape tool.
type GetTapeInput struct {
	ID            string `json:"id" jsonschema:"the tape id"`
	IncludeFrames bool   `json:"include_frames,omitempty" jsonschema:"include the raw upstream frames"`
}

// GetTapeOutput represents the output of the get_tape tool.
type GetTapeOutput struct {
	Tape   TapeSummary  `json:"tape"`
	Frames []tape.Frame `json:"frames,omitempty"`
}

// ReplayTapeInput represents the input arguments for the replay_tape tool.
type ReplayTapeInput struct {
	ID string `json:"id" jsonschema:"the tape id"`
}

// ToolCall is a tool call the replayed dispatch produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Issue is a problem reported during replay.
type Issue struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// ReplayTapeOutput represents the output of the replay_tape tool.
type ReplayTapeOutput struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Model     string     `json:"model,omitempty"`
	Stats     *llm.Stats `json:"stats,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Issues    []Issue    `json:"issues,omitempty"`
}

func (s *Server) handleListTapes(ctx context.Context, _ *mcp.CallToolRequest, input ListTapesInput) (*mcp.CallToolResult, ListTapesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.config.Logger.Debug("MCP list tapes request", "limit", limit)

	tapes, err := s.config.Recorder.List(ctx, limit)
	if err != nil {
		s.config.Logger.Error("failed to list tapes", "error", err)
		return errorResult("Failed to list tapes: %v", err), ListTapesOutput{}, nil
	}

	out := ListTapesOutput{Tapes: make([]TapeSummary, 0, len(tapes))}
	for _, t := range tapes {
		out.Tapes = append(out.Tapes, summarize(t))
	}
	out.Count = len(out.Tapes)

	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), ListTapesOutput{}, nil
	}
	return res, out, nil
}

func (s *Server) handleGetTape(ctx context.Context, _ *mcp.CallToolRequest, input GetTapeInput) (*mcp.CallToolResult, GetTapeOutput, error) {
	t, errRes := s.load(ctx, input.ID)
	if errRes != nil {
		return errRes, GetTapeOutput{}, nil
	}

	out := GetTapeOutput{Tape: summarize(t)}
	if input.IncludeFrames {
		out.Frames = t.Frames
	}

	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize tape: %v", err), GetTapeOutput{}, nil
	}
	return res, out, nil
}

func (s *Server) handleReplayTape(ctx context.Context, _ *mcp.CallToolRequest, input ReplayTapeInput) (*mcp.CallToolResult, ReplayTapeOutput, error) {
	t, errRes := s.load(ctx, input.ID)
	if errRes != nil {
		return errRes, ReplayTapeOutput{}, nil
	}

	actions, err := tape.Replay(ctx, t, s.config.Policy)
	if err != nil {
		return errorResult("Failed to replay tape %s: %v", t.ID, err), ReplayTapeOutput{}, nil
	}

	out := replayOutput(t.ID, actions)
	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize replay: %v", err), ReplayTapeOutput{}, nil
	}
	return res, out, nil
}

// load fetches a tape. A non-nil result is the error to return to the client.
func (s *Server) load(ctx context.Context, id string) (*tape.Tape, *mcp.CallToolResult) {
	if id == "" {
		return nil, errorResult("id is required")
	}

	t, err := s.config.Recorder.Get(ctx, id)
	if err != nil {
		var nf tape.NotFoundError
		if errors.As(err, &nf) {
			return nil, errorResult("Tape %s not found", id)
		}
		s.config.Logger.Error("failed to load tape", "id", id, "error", err)
		return nil, errorResult("Failed to load tape %s: %v", id, err)
	}
	return t, nil
}

func summarize(t *tape.Tape) TapeSummary {
	summary := TapeSummary{
		ID:         t.ID,
		Vendor:     t.Vendor,
		Model:      t.Model,
		StartedAt:  t.StartedAt,
		DurationMs: t.Duration().Milliseconds(),
		Outcome:    t.Outcome,
		Frames:     len(t.Frames),
	}
	if s := t.Metadata.Stats; s != (llm.Stats{}) {
		summary.Stats = &s
	}
	return summary
}

func replayOutput(id string, actions []llm.Action) ReplayTapeOutput {
	out := ReplayTapeOutput{ID: id}

	var text strings.Builder
	var meta llm.Metadata
	for _, a := range actions {
		switch a := a.(type) {
		case llm.Text:
			text.WriteString(a.Fragment)
		case llm.ToolCall:
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: a.ID, Name: a.Name, Arguments: a.Arguments})
		case llm.Issue:
			out.Issues = append(out.Issues, Issue{Symbol: a.Symbol, Message: a.Message})
		case llm.Set:
			meta.Apply(a)
		}
	}

	out.Text = text.String()
	out.Model = meta.Model
	if meta.Stats != (llm.Stats{}) {
		out.Stats = &meta.Stats
	}
	return out
}
