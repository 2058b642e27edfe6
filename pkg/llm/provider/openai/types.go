package openai

import "encoding/json"

// Streaming chunk payloads of the Chat Completions API, shared by every
// OpenAI-compatible vendor.

type chatChunk struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []chunkChoice   `json:"choices" validate:"dive"`
	Usage   json.RawMessage `json:"usage,omitempty"`
	Error   *openaiError    `json:"error,omitempty"`
}

type chunkChoice struct {
	Index        int         `json:"index" validate:"min=0"`
	Delta        *chunkDelta `json:"delta,omitempty"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

type chunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	Refusal   *string         `json:"refusal,omitempty"`
	ToolCalls []chunkToolCall `json:"tool_calls,omitempty" validate:"dive"`
}

type chunkToolCall struct {
	Index    int    `json:"index" validate:"min=0"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function *struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}

// openaiUsage is decoded apart from the chunk so a malformed counter only
// costs the stats.
type openaiUsage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty" validate:"omitempty,min=0"`
	CompletionTokens *int `json:"completion_tokens,omitempty" validate:"omitempty,min=0"`
	TotalTokens      *int `json:"total_tokens,omitempty" validate:"omitempty,min=0"`
}

// openaiError is the in-band error object some compatible servers send as a
// data frame instead of a non-2xx response.
type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

var finishReasons = map[string]bool{
	"stop":           true,
	"length":         true,
	"tool_calls":     true,
	"content_filter": true,
	"function_call":  true,
}
