package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider implements the Provider interface for Google's Gemini models
// using the official GenAI SDK.
type GeminiProvider struct {
	APIKey string
	Model  string // fallback when a request leaves Model empty

	mu     sync.Mutex
	client *genai.Client
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{APIKey: apiKey, Model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// getClient creates the SDK client on first use and reuses it afterwards.
func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

func (p *GeminiProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	if p.Model != "" {
		return p.Model
	}
	return DefaultGeminiModel
}

// Generate sends a generateContent request. A schema switches the response to JSON.
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.JSON || req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		config.ResponseSchema = toGenAISchema(req.Schema)
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, p.model(req.Model), genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// StartChat opens a chat session. History accumulates inside the SDK chat object.
func (p *GeminiProvider) StartChat(ctx context.Context, req ChatRequest) (Chat, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	chat, err := client.Chats.Create(ctx, p.model(req.Model), config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, message string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("gemini chat message failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Items:       toGenAISchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	return out
}
