package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used by [Gemini] when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini implements [Client] using the Google Gen AI API.
type Gemini struct {
	Client *genai.Client

	// Model should not start with "models/"
	Model string
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini client for the Gemini Developer API.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := config{model: DefaultGeminiModel}
	for _, o := range opts {
		o(&cfg)
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &Gemini{Client: client, Model: cfg.model}, nil
}

// Complete sends req and returns the text parts of the first candidate.
func (g *Gemini) Complete(ctx context.Context, req *Request) (string, error) {
	cfg, contents, err := geminiConvRequest(req)
	if err != nil {
		return "", err
	}
	model := req.Model
	if model == "" {
		model = g.Model
	}
	resp, err := g.Client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return "", remoteError(err)
	}
	if len(resp.Candidates) == 0 {
		return "", remoteError(errors.New("no candidates"))
	}
	t := resp.Candidates[0]
	if t.FinishReason != genai.FinishReasonStop && t.FinishReason != genai.FinishReasonUnspecified {
		return "", remoteError(fmt.Errorf("unexpected finish reason: %s", t.FinishReason))
	}
	if t.Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range t.Content.Parts {
		if p.Text != "" && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

// geminiConvRequest maps system messages to the system instruction and the
// rest to alternating user and model contents.
func geminiConvRequest(req *Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := &genai.GenerateContentConfig{}
	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		var role string
		switch m.Role {
		case RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
			continue
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		default:
			return nil, nil, fmt.Errorf("llm: unexpected role %q", m.Role)
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(m.Content))
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("llm: no contents")
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	return cfg, contents, nil
}
