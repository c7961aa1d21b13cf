package transcribe

import (
	"bytes"
	"context"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
	"github.com/haivivi/loopscribe/pkg/audio/wav"
)

// DefaultRemoteModel is the transcription model of the OpenAI API.
const DefaultRemoteModel = "whisper-1"

// RemoteLoader creates engines backed by an OpenAI-compatible
// /audio/transcriptions endpoint. The model id is the remote model name.
type RemoteLoader struct {
	APIKey string

	// BaseURL defaults to the OpenAI API.
	BaseURL string

	// Language is an ISO-639-1 code; empty lets the service detect it.
	Language string

	HTTPClient *http.Client
}

var _ Loader = (*RemoteLoader)(nil)

// Materialized reports whether credentials are configured.
func (l *RemoteLoader) Materialized(string) bool {
	return l.APIKey != ""
}

func (l *RemoteLoader) Load(_ context.Context, id string) (Engine, error) {
	opts := []option.RequestOption{option.WithAPIKey(l.APIKey)}
	if l.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(l.BaseURL))
	}
	if l.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(l.HTTPClient))
	}
	client := openai.NewClient(opts...)
	if id == "" {
		id = DefaultRemoteModel
	}
	return &OpenAIEngine{client: &client, model: id, language: l.Language}, nil
}

// OpenAIEngine uploads each buffer as a 16-bit WAV file.
type OpenAIEngine struct {
	client   *openai.Client
	model    string
	language string
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	data, err := wav.Marshal(pcm.L16Mono16K, pcm.EncodeInt16(samples))
	if err != nil {
		return "", err
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "chunk.wav", "audio/wav"),
		Model: openai.AudioModel(e.model),
	}
	if e.language != "" {
		params.Language = param.NewOpt(e.language)
	}
	resp, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *OpenAIEngine) Close() error {
	return nil
}
