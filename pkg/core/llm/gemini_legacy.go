package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LegacyGeminiProvider talks to Gemini through github.com/google/generative-ai-go.
// It is kept selectable for deployments pinned to the older SDK.
type LegacyGeminiProvider struct {
	APIKey string
	Model  string

	mu     sync.Mutex
	client *legacy.Client
}

var _ Provider = (*LegacyGeminiProvider)(nil)

func NewLegacyGeminiProvider(apiKey, model string) *LegacyGeminiProvider {
	return &LegacyGeminiProvider{APIKey: apiKey, Model: model}
}

func (p *LegacyGeminiProvider) Name() string { return "gemini-legacy" }

func (p *LegacyGeminiProvider) getClient(ctx context.Context) (*legacy.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := legacy.NewClient(ctx, option.WithAPIKey(p.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create legacy Gemini client: %w", err)
	}
	p.client = client
	return client, nil
}

// Close releases the underlying gRPC connection.
func (p *LegacyGeminiProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func (p *LegacyGeminiProvider) newModel(client *legacy.Client, name, system string, temperature *float32) *legacy.GenerativeModel {
	if name == "" {
		name = p.Model
	}
	if name == "" {
		name = DefaultGeminiModel
	}
	model := client.GenerativeModel(name)
	if temperature != nil {
		model.SetTemperature(*temperature)
	}
	if system != "" {
		model.SystemInstruction = &legacy.Content{
			Parts: []legacy.Part{legacy.Text(system)},
		}
	}
	return model
}

func (p *LegacyGeminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := p.newModel(client, req.Model, req.SystemPrompt, req.Temperature)
	if req.JSON || req.Schema != nil {
		model.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		model.ResponseSchema = toLegacySchema(req.Schema)
	}

	resp, err := model.GenerateContent(ctx, legacy.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return legacyText(resp)
}

func (p *LegacyGeminiProvider) StartChat(ctx context.Context, req ChatRequest) (Chat, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}
	model := p.newModel(client, req.Model, req.SystemInstruction, req.Temperature)
	return &legacyChat{session: model.StartChat()}, nil
}

type legacyChat struct {
	session *legacy.ChatSession
}

func (c *legacyChat) Send(ctx context.Context, message string) (string, error) {
	resp, err := c.session.SendMessage(ctx, legacy.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini chat message failed: %w", err)
	}
	return legacyText(resp)
}

func legacyText(resp *legacy.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(legacy.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toLegacySchema(s *Schema) *legacy.Schema {
	if s == nil {
		return nil
	}
	out := &legacy.Schema{
		Type:        legacyType(s.Type),
		Description: s.Description,
		Items:       toLegacySchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*legacy.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toLegacySchema(prop)
		}
	}
	return out
}

func legacyType(t SchemaType) legacy.Type {
	switch t {
	case TypeObject:
		return legacy.TypeObject
	case TypeArray:
		return legacy.TypeArray
	case TypeString:
		return legacy.TypeString
	case TypeNumber:
		return legacy.TypeNumber
	case TypeInteger:
		return legacy.TypeInteger
	case TypeBoolean:
		return legacy.TypeBoolean
	default:
		return legacy.TypeUnspecified
	}
}
