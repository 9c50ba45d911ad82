// Package google provides a ChatModel adapter for Google's Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/specforge/trdgraph/graph/model"
	"google.golang.org/genai"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// Handles tool/function calling and context cancellation the same way the
// Anthropic and OpenAI adapters do, so internal/collab.ModelCompleter can
// swap providers without caring which one is behind the interface.
// Chat passes a *SafetyFilterError through when the client returns one; the
// default SDK-backed client never does, and a response with no candidates
// (as a safety block produces) comes back as an empty ChatOut.
//
// Example:
//
//	m := google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), "gemini-2.5-flash")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleUser, Content: "Summarize the auth requirements in this PRD."},
//	}, nil)
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

// googleClient defines the interface for Google Gemini API operations.
// This allows for easy mocking in tests.
type googleClient interface {
	generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a new Google ChatModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	out, err := m.client.generateContent(ctx, messages, tools)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return model.ChatOut{}, handleSafetyFilterError(safetyErr)
		}
		return model.ChatOut{}, err
	}

	return out, nil
}

// handleSafetyFilterError returns the safety filter error as is; its message
// already reads "content blocked by safety filter: <category>".
//
// Google's safety filters can block content in several categories:
//   - HARM_CATEGORY_HATE_SPEECH
//   - HARM_CATEGORY_SEXUALLY_EXPLICIT
//   - HARM_CATEGORY_DANGEROUS_CONTENT
//   - HARM_CATEGORY_HARASSMENT
func handleSafetyFilterError(err *SafetyFilterError) error {
	return err
}

// defaultClient wraps the official google.golang.org/genai SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("failed to create Google client: %w", err)
	}

	contents, systemInstruction := convertMessages(messages)
	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if len(tools) > 0 {
		config.Tools = convertTools(tools)
	}

	resp, err := client.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}

	return convertResponse(resp), nil
}

// convertMessages converts our Message format to genai.Content, pulling
// system messages into a separate SystemInstruction the way Gemini expects
// rather than inlining them into the conversation.
func convertMessages(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		if msg.Role == model.RoleSystem {
			if systemInstruction == nil {
				systemInstruction = &genai.Content{Role: "user"}
			}
			systemInstruction.Parts = append(systemInstruction.Parts, &genai.Part{Text: msg.Content})
			continue
		}

		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	return contents, systemInstruction
}

// convertTools converts our ToolSpec format to genai's format.
func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchemaToGenai(t.Schema),
		}
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchemaToGenai converts a JSON schema map to genai.Schema format,
// recursing through properties and items the way a JSON Schema walker does.
func convertSchemaToGenai(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}

	if typeStr, ok := schema["type"].(string); ok {
		result.Type = convertTypeString(typeStr)
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if propMap, ok := val.(map[string]interface{}); ok {
				properties[key] = convertSchemaToGenai(propMap)
			}
		}
		result.Properties = properties
	}

	if items, ok := schema["items"].(map[string]interface{}); ok {
		result.Items = convertSchemaToGenai(items)
	}

	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []interface{}:
		requiredStrs := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				requiredStrs = append(requiredStrs, s)
			}
		}
		result.Required = requiredStrs
	}

	return result
}

// convertResponse converts genai's response to our ChatOut format.
func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}

	return out
}

// convertTypeString converts a JSON Schema type string to a genai.Type constant.
func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError represents a Google safety filter block, naming the
// reason and category so a caller can check it with errors.As and decide
// whether to retry with a different provider.
type SafetyFilterError struct {
	reason   string
	category string
}

// Error implements the error interface.
func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}
