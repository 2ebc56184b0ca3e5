package llm

import (
	"context"
	"errors"
)

var (
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// SchemaType names a JSON value kind in a response schema.
type SchemaType string

const (
	TypeObject  SchemaType = "OBJECT"
	TypeArray   SchemaType = "ARRAY"
	TypeString  SchemaType = "STRING"
	TypeNumber  SchemaType = "NUMBER"
	TypeInteger SchemaType = "INTEGER"
	TypeBoolean SchemaType = "BOOLEAN"
)

// Schema is a provider-neutral description of the JSON shape a model must return.
// Each provider converts it to its own SDK type.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// GenerateRequest is a single request/response generation call.
type GenerateRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	JSON         bool    // ask for application/json output
	Schema       *Schema // implies JSON when set
	Temperature  *float32
}

// ChatRequest opens a multi-turn session seeded with a system instruction.
type ChatRequest struct {
	Model             string
	SystemInstruction string
	Temperature       *float32
}

// Chat is a provider-side conversational context. Every Send sees all prior turns.
type Chat interface {
	Send(ctx context.Context, message string) (string, error)
}

// Provider is the interface for all LLM providers.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	StartChat(ctx context.Context, req ChatRequest) (Chat, error)
}

// Float32 returns a pointer to v, for optional temperatures.
func Float32(v float32) *float32 {
	return &v
}
