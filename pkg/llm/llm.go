// Package llm sends single-shot chat completions to a remote language model.
//
// Two backends are provided:
//
//   - [OpenAI] speaks the OpenAI chat completions API. It defaults to
//     OpenRouter, which fronts many vendors behind one key.
//   - [Gemini] speaks the Google Gen AI API.
//
// # Quick Start
//
//	c := llm.NewOpenAI(os.Getenv("OPENROUTER_API_KEY"))
//	text, err := c.Complete(ctx, &llm.Request{
//		Messages: []llm.Message{
//			llm.System("Translate the following text to Russian."),
//			llm.User("Hello"),
//		},
//	})
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrRemoteCall wraps every transport, status and empty-response failure.
var ErrRemoteCall = errors.New("llm: remote call failed")

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Request is a chat completion request.
type Request struct {
	// Model overrides the client default when non-empty.
	Model string

	Messages []Message

	// JSON asks the model for a single JSON object.
	JSON bool

	// Temperature is passed through when non-nil.
	Temperature *float64
}

// Client completes a chat request and returns the reply text.
type Client interface {
	Complete(ctx context.Context, req *Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

func remoteError(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoteCall, err)
}

// config holds shared configuration for client implementations.
type config struct {
	model      string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// Option configures a client.
type Option func(*config)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *config) {
		if c.headers == nil {
			c.headers = map[string]string{}
		}
		c.headers[key] = value
	}
}
