// Package chat is the text-generation collaborator: one conversation
// against the OpenAI chat API, or an echo stand-in for offline runs.
package chat

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
)

// GenerationError wraps any fault of the text-generation service
// (quota, network, empty response).
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

const defaultSystemPrompt = "You are Aura, a hands-free voice assistant. " +
	"Replies are read aloud, so answer in short spoken sentences without markup."

// Keeping every exchange forever grows the request without bound; the
// oldest turns are dropped past this many messages (system prompt not
// counted).
const defaultMaxHistory = 64

type Config struct {
	Model        string
	SystemPrompt string
	MaxHistory   int
}

type Client struct {
	api     openai.Client
	model   string
	maxHist int
	history []openai.ChatCompletionMessageParamUnion
}

func New(api openai.Client, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT5Nano
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	return &Client{
		api:     api,
		model:   cfg.Model,
		maxHist: cfg.MaxHistory,
		history: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cfg.SystemPrompt),
		},
	}
}

// Send appends the user text to the conversation, asks the model, and
// appends the reply. Failed turns leave the history untouched.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	messages := append(append([]openai.ChatCompletionMessageParamUnion(nil), c.history...),
		openai.UserMessage(text))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Err: fmt.Errorf("no choices in response")}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &GenerationError{Err: fmt.Errorf("empty message content")}
	}

	c.history = append(messages, openai.AssistantMessage(content))
	c.history = trimHistory(c.history, c.maxHist)

	return content, nil
}

// trimHistory drops the oldest exchanges past the limit while always
// keeping the leading system message.
func trimHistory(h []openai.ChatCompletionMessageParamUnion, max int) []openai.ChatCompletionMessageParamUnion {
	if len(h) <= max+1 {
		return h
	}
	trimmed := make([]openai.ChatCompletionMessageParamUnion, 0, max+1)
	trimmed = append(trimmed, h[0])
	trimmed = append(trimmed, h[len(h)-max:]...)
	return trimmed
}

// Echo is the test-configuration stand-in: it returns the prompt
// unchanged and keeps no history.
type Echo struct{}

func (Echo) Send(_ context.Context, text string) (string, error) {
	return text, nil
}
