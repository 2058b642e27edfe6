package ollama

import "encoding/json"

// chatChunk is one NDJSON line of a streaming /api/chat response.
type chatChunk struct {
	Model   string         `json:"model"`
	Message *ollamaMessage `json:"message,omitempty"`
	Done    bool           `json:"done"`

	DoneReason *string `json:"done_reason,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// doneCounters are the statistics on the final line. They sit beside the
// chunk fields but are decoded separately so a bad counter only costs the
// stats.
type doneCounters struct {
	TotalDuration      *int64 `json:"total_duration,omitempty" validate:"omitempty,min=0"`
	LoadDuration       *int64 `json:"load_duration,omitempty" validate:"omitempty,min=0"`
	PromptEvalCount    *int   `json:"prompt_eval_count,omitempty" validate:"omitempty,min=0"`
	PromptEvalDuration *int64 `json:"prompt_eval_duration,omitempty" validate:"omitempty,min=0"`
	EvalCount          *int   `json:"eval_count,omitempty" validate:"omitempty,min=0"`
	EvalDuration       *int64 `json:"eval_duration,omitempty" validate:"omitempty,min=0"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Thinking  string           `json:"thinking,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty" validate:"dive"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Index     int             `json:"index,omitempty"`
		Name      string          `json:"name" validate:"required"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	} `json:"function"`
}

var doneReasons = map[string]bool{
	"stop":   true,
	"length": true,
	"load":   true,
	"unload": true,
}
