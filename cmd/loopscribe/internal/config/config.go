// Package config loads the loopscribe configuration file.
//
// The file lives at os.UserConfigDir()/loopscribe/config.yaml:
//
//	~/Library/Application Support/loopscribe/config.yaml   (macOS)
//	~/.config/loopscribe/config.yaml                       (Linux)
//	%AppData%/loopscribe/config.yaml                       (Windows)
//
// A missing file is not an error; every field has a default. API keys left
// empty in the file are taken from OPENROUTER_API_KEY, OPENAI_API_KEY or
// GEMINI_API_KEY depending on the provider.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/loopscribe/pkg/analysis"
	"github.com/haivivi/loopscribe/pkg/capture"
	"github.com/haivivi/loopscribe/pkg/cli"
	"github.com/haivivi/loopscribe/pkg/models"
	"github.com/haivivi/loopscribe/pkg/pipeline"
	"github.com/haivivi/loopscribe/pkg/storage"
	"github.com/haivivi/loopscribe/pkg/transcribe"
)

// Transcription engines.
const (
	EngineWhisper = "whisper"
	EngineOpenAI  = "openai"
)

// LLM providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

// Presentation formats.
const (
	PresentTerminal = "terminal"
	PresentJSONL    = "jsonl"
)

// OpenAIBaseURL is used for ProviderOpenAI and the openai engine.
const OpenAIBaseURL = "https://api.openai.com/v1"

// Config is the whole configuration file.
type Config struct {
	// Path is where the file was loaded from.
	Path string `yaml:"-"`

	LogLevel    string `yaml:"log_level,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// ContextSize is the number of transcripts analyzed together.
	ContextSize int `yaml:"context_size,omitempty"`

	Capture       Capture       `yaml:"capture"`
	Transcription Transcription `yaml:"transcription"`
	LLM           LLM           `yaml:"llm"`
	Archive       Archive       `yaml:"archive"`
	Present       Present       `yaml:"present"`
}

// Capture configures the audio source.
type Capture struct {
	// Device is a case-insensitive substring of the input device name.
	// Empty picks the first loopback device, then the default input.
	Device string `yaml:"device,omitempty"`

	// Period is the chunk length, e.g. "30s".
	Period string `yaml:"period,omitempty"`

	// SampleRate and Channels default to the device settings.
	SampleRate int `yaml:"sample_rate,omitempty"`
	Channels   int `yaml:"channels,omitempty"`
}

// Transcription configures the speech-to-text engine.
type Transcription struct {
	Engine string `yaml:"engine,omitempty"`

	// Model is a catalog filename or name for whisper, a model id for openai.
	Model    string `yaml:"model,omitempty"`
	Language string `yaml:"language,omitempty"`

	// Binary is the whisper.cpp program.
	Binary  string `yaml:"binary,omitempty"`
	Threads int    `yaml:"threads,omitempty"`

	// ModelsDir holds downloaded ggml files.
	ModelsDir string `yaml:"models_dir,omitempty"`

	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	SilenceThreshold float32 `yaml:"silence_threshold,omitempty"`
}

// LLM configures translation and analysis.
type LLM struct {
	Provider string `yaml:"provider,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`

	TargetLanguage  string `yaml:"target_language,omitempty"`
	TranslatePrompt string `yaml:"translate_prompt,omitempty"`
	AnalyzePrompt   string `yaml:"analyze_prompt,omitempty"`

	DisableTranslation bool `yaml:"disable_translation,omitempty"`
	DisableAnalysis    bool `yaml:"disable_analysis,omitempty"`

	// Timeout bounds each request, e.g. "60s".
	Timeout string `yaml:"timeout,omitempty"`
}

// Archive configures chunk archiving. Disabled unless Enabled is set.
type Archive struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Dir is the local archive root. Ignored when S3 is set.
	Dir string `yaml:"dir,omitempty"`

	S3 *S3Archive `yaml:"s3,omitempty"`
}

// S3Archive archives into a bucket.
type S3Archive struct {
	Bucket           string `yaml:"bucket"`
	Prefix           string `yaml:"prefix,omitempty"`
	storage.S3Config `yaml:",inline"`
}

// Present configures output.
type Present struct {
	Format  string `yaml:"format,omitempty"`
	NoColor bool   `yaml:"no_color,omitempty"`
	Width   int    `yaml:"width,omitempty"`

	// ListenAddr serves the websocket live feed at /live when set.
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	p, err := cli.NewPaths()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return p.ConfigFile(), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults(nil)
	return c
}

// Load reads the configuration at path, or at DefaultPath when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.Path = path

	paths, _ := cli.NewPaths()
	c.applyDefaults(paths)
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes c to its Path, creating the directory.
func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config: no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// The file may hold API keys.
	if err := os.WriteFile(c.Path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", c.Path, err)
	}
	return nil
}

func (c *Config) applyDefaults(paths *cli.Paths) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ContextSize == 0 {
		c.ContextSize = pipeline.DefaultWindowSize
	}
	if c.Capture.Period == "" {
		c.Capture.Period = capture.DefaultPeriod.String()
	}

	t := &c.Transcription
	if t.Engine == "" {
		t.Engine = EngineWhisper
	}
	if t.Model == "" {
		if t.Engine == EngineOpenAI {
			t.Model = transcribe.DefaultRemoteModel
		} else {
			t.Model = models.DefaultModel
		}
	}
	if t.Language == "" {
		t.Language = "auto"
	}
	if t.Binary == "" {
		t.Binary = transcribe.DefaultWhisperBinary
	}
	if t.ModelsDir == "" && paths != nil {
		t.ModelsDir = paths.ModelsDir()
	}
	if t.Engine == EngineOpenAI && t.BaseURL == "" {
		t.BaseURL = OpenAIBaseURL
	}

	l := &c.LLM
	if l.Provider == "" {
		l.Provider = ProviderOpenRouter
	}
	if l.TargetLanguage == "" {
		l.TargetLanguage = analysis.DefaultLanguage
	}
	if l.TranslatePrompt == "" {
		l.TranslatePrompt = analysis.DefaultTranslatePrompt
	}
	if l.AnalyzePrompt == "" {
		l.AnalyzePrompt = analysis.DefaultAnalyzePrompt
	}
	if l.Timeout == "" {
		l.Timeout = pipeline.DefaultStageTimeout.String()
	}
	if l.Provider == ProviderOpenAI && l.BaseURL == "" {
		l.BaseURL = OpenAIBaseURL
	}

	if c.Archive.Dir == "" && paths != nil {
		c.Archive.Dir = paths.ArchiveDir()
	}
	if c.Present.Format == "" {
		c.Present.Format = PresentTerminal
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case ProviderOpenRouter:
			c.LLM.APIKey = getenv("OPENROUTER_API_KEY")
		case ProviderOpenAI:
			c.LLM.APIKey = getenv("OPENAI_API_KEY")
		case ProviderGemini:
			c.LLM.APIKey = getenv("GEMINI_API_KEY")
		}
	}
	if c.Transcription.APIKey == "" && c.Transcription.Engine == EngineOpenAI {
		c.Transcription.APIKey = getenv("OPENAI_API_KEY")
	}
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	if _, err := c.ChunkPeriod(); err != nil {
		return err
	}
	if _, err := c.StageTimeout(); err != nil {
		return err
	}
	switch c.Transcription.Engine {
	case EngineWhisper, EngineOpenAI:
	default:
		return fmt.Errorf("unknown transcription engine %q", c.Transcription.Engine)
	}
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Present.Format {
	case PresentTerminal, PresentJSONL:
	default:
		return fmt.Errorf("unknown present format %q", c.Present.Format)
	}
	if c.ContextSize < 0 {
		return fmt.Errorf("context_size must not be negative")
	}
	if s3 := c.Archive.S3; s3 != nil && s3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required")
	}
	return nil
}

// ChunkPeriod parses Capture.Period.
func (c *Config) ChunkPeriod() (time.Duration, error) {
	return positiveDuration("capture.period", c.Capture.Period)
}

// StageTimeout parses LLM.Timeout.
func (c *Config) StageTimeout() (time.Duration, error) {
	return positiveDuration("llm.timeout", c.LLM.Timeout)
}

func positiveDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	r := *c
	r.LLM.APIKey = mask(r.LLM.APIKey)
	r.Transcription.APIKey = mask(r.Transcription.APIKey)
	if c.Archive.S3 != nil {
		s3 := *c.Archive.S3
		s3.SecretAccessKey = mask(s3.SecretAccessKey)
		r.Archive.S3 = &s3
	}
	return &r
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}
