package llm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	// OpenRouterBaseURL is the default endpoint of [OpenAI].
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when neither the client nor the request names one.
	DefaultModel = "google/gemini-2.0-flash-001"

	// AppTitle is sent to OpenRouter as X-Title.
	AppTitle   = "SystemAudioAnalyzer"
	AppReferer = "https://github.com/haivivi/loopscribe"
)

// OpenAI implements [Client] using the OpenAI chat completions API.
//
// Any OpenAI-compatible provider works by setting WithBaseURL. With the
// default base URL the OpenRouter attribution headers are added.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      DefaultModel,
		baseURL:    OpenRouterBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.baseURL == OpenRouterBaseURL {
		if _, ok := cfg.headers["HTTP-Referer"]; !ok {
			WithHeader("HTTP-Referer", AppReferer)(&cfg)
		}
		if _, ok := cfg.headers["X-Title"]; !ok {
			WithHeader("X-Title", AppTitle)(&cfg)
		}
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(cfg.httpClient),
	}
	for _, k := range slices.Sorted(maps.Keys(cfg.headers)) {
		clientOpts = append(clientOpts, option.WithHeader(k, cfg.headers[k]))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: cfg.model}
}

// Model returns the default model.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete sends req and returns the content of the first choice.
func (o *OpenAI) Complete(ctx context.Context, req *Request) (string, error) {
	params, err := o.chatCompletion(req)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", remoteError(err)
	}
	if len(resp.Choices) == 0 {
		return "", remoteError(errors.New("no choices"))
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", remoteError(fmt.Errorf("blocked: %s", msg.Refusal))
	}
	return msg.Content, nil
}

func (o *OpenAI) chatCompletion(req *Request) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			return params, fmt.Errorf("llm: unexpected role %q", m.Role)
		}
	}
	if len(params.Messages) == 0 {
		return params, errors.New("llm: no messages")
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	return params, nil
}
