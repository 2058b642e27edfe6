package anthropic

import "encoding/json"

// Streaming event payloads of the Anthropic Messages API. Only the fields
// the parser reads are declared; unknown keys are ignored.

type messageStartEvent struct {
	Message *streamMessage `json:"message" validate:"required"`
}

type streamMessage struct {
	ID    string          `json:"id"`
	Model string          `json:"model"`
	Usage json.RawMessage `json:"usage,omitempty"`
}

// anthropicUsage is decoded on its own through parse.Options.Degradable.
type anthropicUsage struct {
	InputTokens              *int `json:"input_tokens,omitempty" validate:"omitempty,min=0"`
	OutputTokens             *int `json:"output_tokens,omitempty" validate:"omitempty,min=0"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty" validate:"omitempty,min=0"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty" validate:"omitempty,min=0"`
}

type contentBlockStartEvent struct {
	Index        int                    `json:"index" validate:"min=0"`
	ContentBlock *anthropicContentBlock `json:"content_block" validate:"required"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type" validate:"required"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type contentBlockDeltaEvent struct {
	Index int             `json:"index" validate:"min=0"`
	Delta *anthropicDelta `json:"delta" validate:"required"`
}

type anthropicDelta struct {
	Type        string `json:"type" validate:"required"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type contentBlockStopEvent struct {
	Index int `json:"index" validate:"min=0"`
}

type messageDeltaEvent struct {
	Delta *struct {
		StopReason   *string `json:"stop_reason,omitempty"`
		StopSequence *string `json:"stop_sequence,omitempty"`
	} `json:"delta,omitempty"`
	Usage json.RawMessage `json:"usage,omitempty"`
}

type errorEvent struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error" validate:"required"`
}

// Known enumeration values.
var (
	stopReasons = map[string]bool{
		"end_turn":      true,
		"max_tokens":    true,
		"stop_sequence": true,
		"tool_use":      true,
		"pause_turn":    true,
		"refusal":       true,
	}

	// bookkeepingBlocks are content blocks that carry no user-facing output.
	bookkeepingBlocks = map[string]bool{
		"thinking":               true,
		"redacted_thinking":      true,
		"server_tool_use":        true,
		"web_search_tool_result": true,
	}

	bookkeepingDeltas = map[string]bool{
		"thinking_delta":  true,
		"signature_delta": true,
		"citations_delta": true,
	}
)
