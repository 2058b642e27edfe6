package gemini

import "encoding/json"

// generateResponse is one SSE chunk of streamGenerateContent?alt=sse.
type generateResponse struct {
	Candidates     []candidate     `json:"candidates,omitempty" validate:"dive"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  json.RawMessage `json:"usageMetadata,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
	ResponseID     string          `json:"responseId,omitempty"`
	Error          *geminiError    `json:"error,omitempty"`
}

type candidate struct {
	Content      *geminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
	Index        int            `json:"index,omitempty" validate:"min=0"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty" validate:"dive"`
}

type geminiPart struct {
	Text         string        `json:"text,omitempty"`
	Thought      bool          `json:"thought,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name" validate:"required"`
	Args json.RawMessage `json:"args,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount        *int `json:"promptTokenCount,omitempty" validate:"omitempty,min=0"`
	CandidatesTokenCount    *int `json:"candidatesTokenCount,omitempty" validate:"omitempty,min=0"`
	ThoughtsTokenCount      *int `json:"thoughtsTokenCount,omitempty" validate:"omitempty,min=0"`
	CachedContentTokenCount *int `json:"cachedContentTokenCount,omitempty" validate:"omitempty,min=0"`
	TotalTokenCount         *int `json:"totalTokenCount,omitempty" validate:"omitempty,min=0"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

var finishReasons = map[string]bool{
	"FINISH_REASON_UNSPECIFIED": true,
	"STOP":                      true,
	"MAX_TOKENS":                true,
	"SAFETY":                    true,
	"RECITATION":                true,
	"LANGUAGE":                  true,
	"OTHER":                     true,
	"BLOCKLIST":                 true,
	"PROHIBITED_CONTENT":        true,
	"SPII":                      true,
	"MALFORMED_FUNCTION_CALL":   true,
	"IMAGE_SAFETY":              true,
}
